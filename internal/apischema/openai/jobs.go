package openai

// Canonical job statuses shared by batches and fine-tuning jobs.
const (
	JobStatusValidating = "validating"
	JobStatusInProgress = "in_progress"
	JobStatusFinalizing = "finalizing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusExpired    = "expired"
	JobStatusCancelling = "cancelling"
	JobStatusCancelled  = "cancelled"
)

// CreateBatchRequest is the canonical request body of POST /v1/batches.
type CreateBatchRequest struct {
	InputFileID      string            `json:"input_file_id"`
	Endpoint         string            `json:"endpoint"`
	CompletionWindow string            `json:"completion_window,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Batch is the canonical batch job record.
type Batch struct {
	ID               string        `json:"id"`
	Object           string        `json:"object"`
	Endpoint         string        `json:"endpoint,omitempty"`
	Errors           *BatchErrors  `json:"errors,omitempty"`
	InputFileID      string        `json:"input_file_id,omitempty"`
	CompletionWindow string        `json:"completion_window,omitempty"`
	Status           string        `json:"status"`
	OutputFileID     string        `json:"output_file_id,omitempty"`
	CreatedAt        int64         `json:"created_at"`
	InProgressAt     int64         `json:"in_progress_at,omitempty"`
	CompletedAt      int64         `json:"completed_at,omitempty"`
	FailedAt         int64         `json:"failed_at,omitempty"`
	ExpiredAt        int64         `json:"expired_at,omitempty"`
	CancelledAt      int64         `json:"cancelled_at,omitempty"`
	RequestCounts    RequestCounts `json:"request_counts"`
}

// BatchErrors is the error list attached to a failed batch.
type BatchErrors struct {
	Object string       `json:"object"`
	Data   []BatchError `json:"data"`
}

// BatchError is one per-row or job-level batch error.
type BatchError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// RequestCounts summarizes row progress of a batch.
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchList is the canonical GET /v1/batches response.
type BatchList struct {
	Object  string  `json:"object"`
	Data    []Batch `json:"data"`
	HasMore bool    `json:"has_more"`
}

// BatchOutputRow is one NDJSON row of a batch output file.
type BatchOutputRow struct {
	ID       string               `json:"id"`
	CustomID string               `json:"custom_id"`
	Response *BatchOutputResponse `json:"response"`
	Error    *ErrorDetail         `json:"error"`
}

// BatchOutputResponse wraps the per-row canonical response body.
type BatchOutputResponse struct {
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
	Body       any    `json:"body"`
}

// CreateFineTuningJobRequest is the canonical POST /v1/fine_tuning/jobs body.
type CreateFineTuningJobRequest struct {
	Model           string          `json:"model"`
	TrainingFile    string          `json:"training_file"`
	ValidationFile  string          `json:"validation_file,omitempty"`
	Suffix          string          `json:"suffix,omitempty"`
	Hyperparameters map[string]any  `json:"hyperparameters,omitempty"`
	Seed            *int64          `json:"seed,omitempty"`
	Method          map[string]any  `json:"method,omitempty"`
	Integrations    []map[string]any `json:"integrations,omitempty"`
}

// FineTuningJob is the canonical fine-tuning job record.
type FineTuningJob struct {
	ID              string         `json:"id"`
	Object          string         `json:"object"`
	Model           string         `json:"model,omitempty"`
	CreatedAt       int64          `json:"created_at"`
	FinishedAt      int64          `json:"finished_at,omitempty"`
	FineTunedModel  string         `json:"fine_tuned_model,omitempty"`
	Status          string         `json:"status"`
	TrainingFile    string         `json:"training_file,omitempty"`
	ValidationFile  string         `json:"validation_file,omitempty"`
	ResultFiles     []string       `json:"result_files,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
	Error           *ErrorDetail   `json:"error,omitempty"`
}

// FineTuningJobList is the canonical GET /v1/fine_tuning/jobs response.
type FineTuningJobList struct {
	Object  string          `json:"object"`
	Data    []FineTuningJob `json:"data"`
	HasMore bool            `json:"has_more"`
}

// File purposes accepted on upload.
const (
	FilePurposeBatch    = "batch"
	FilePurposeFineTune = "fine-tune"
)

// FileObject is the canonical file record. In Bedrock mode the id is the
// URL-encoded s3:// URI of the backing object.
type FileObject struct {
	ID        string `json:"id"`
	Object    string `json:"object"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose,omitempty"`
	Status    string `json:"status"`
}
