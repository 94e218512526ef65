package presenter

import (
	"encoding/json"
	"io"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model"
)

// JSONPresenter implements output.Presenter for JSON output
// Formats all output as JSON for programmatic consumption
type JSONPresenter struct {
	output io.Writer
}

// NewJSONPresenter creates a new JSON presenter
func NewJSONPresenter(output io.Writer) output.Presenter {
	return &JSONPresenter{output: output}
}

// PresentSuccess presents a successful result as JSON
func (p *JSONPresenter) PresentSuccess(message string, data interface{}) error {
	result := map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	}
	return json.NewEncoder(p.output).Encode(result)
}

// PresentError presents an error as JSON. Field-level validation failures
// are listed under "fields". The error is returned so the command fails.
func (p *JSONPresenter) PresentError(err error) error {
	result := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	if verr, ok := model.AsValidationErrors(err); ok {
		result["fields"] = verr.ToMap()
	}
	if encErr := json.NewEncoder(p.output).Encode(result); encErr != nil {
		return encErr
	}
	return err
}

// PresentProgress presents progress information as JSON
func (p *JSONPresenter) PresentProgress(message string, progress int, total int) error {
	percent := 0.0
	if total > 0 {
		percent = float64(progress) / float64(total) * 100
	}
	result := map[string]interface{}{
		"type":     "progress",
		"message":  message,
		"progress": progress,
		"total":    total,
		"percent":  percent,
	}
	return json.NewEncoder(p.output).Encode(result)
}
