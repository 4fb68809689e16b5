package http

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/polski-lektor/lektor-tts/internal/dataset"
)

const datasetFilesField = "files"

type (
	PrepareDatasetInput struct {
		RawBody multipart.Form
	}

	PrepareDatasetOutput struct {
		Body dataset.Manifest
	}
)

// DatasetHandler handles HTTP requests for datasets.
type DatasetHandler struct {
	preparer *dataset.Preparer
}

// NewDatasetHandler creates a new DatasetHandler instance.
func NewDatasetHandler(api huma.API, preparer *dataset.Preparer) *DatasetHandler {
	h := &DatasetHandler{preparer: preparer}

	huma.Register(api, huma.Operation{
		OperationID: "prepare-dataset",
		Method:      http.MethodPost,
		Path:        "/dataset/prepare",
		Summary:     "Upload samples and write a dataset manifest",
		Tags:        []string{"dataset"},
	}, h.handlePrepare)

	return h
}

// handlePrepare handles the prepare-dataset operation.
func (h *DatasetHandler) handlePrepare(ctx context.Context, input *PrepareDatasetInput) (*PrepareDatasetOutput, error) {
	headers := input.RawBody.File[datasetFilesField]
	if len(headers) == 0 {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("multipart field %q is required", datasetFilesField))
	}

	files := make([]dataset.File, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("cannot read upload %q", fh.Filename), err)
		}
		closers = append(closers, f)
		files = append(files, dataset.File{Name: fh.Filename, Content: f})
	}

	manifest, err := h.preparer.Prepare(ctx, files)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to prepare dataset", err)
	}

	return &PrepareDatasetOutput{Body: *manifest}, nil
}
