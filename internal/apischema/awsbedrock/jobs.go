package awsbedrock

// Control-plane job records of the bedrock service. Field names follow the
// CreateModelInvocationJob and CreateModelCustomizationJob APIs.

// AWS job status values. The gateway normalizes these PascalCase values to
// the canonical snake_case enum.
const (
	JobStatusSubmitted          = "Submitted"
	JobStatusValidating         = "Validating"
	JobStatusScheduled          = "Scheduled"
	JobStatusInProgress         = "InProgress"
	JobStatusCompleted          = "Completed"
	JobStatusPartiallyCompleted = "PartiallyCompleted"
	JobStatusFailed             = "Failed"
	JobStatusStopping           = "Stopping"
	JobStatusStopped            = "Stopped"
	JobStatusExpired            = "Expired"
)

// S3InputDataConfig locates the input object of a job.
type S3InputDataConfig struct {
	S3URI         string `json:"s3Uri"`
	S3InputFormat string `json:"s3InputFormat,omitempty"`
}

// S3OutputDataConfig locates the output prefix of a job.
type S3OutputDataConfig struct {
	S3URI                   string `json:"s3Uri"`
	S3EncryptionKeyID       string `json:"s3EncryptionKeyId,omitempty"`
}

// JobInputDataConfig wraps the input location union.
type JobInputDataConfig struct {
	S3InputDataConfig *S3InputDataConfig `json:"s3InputDataConfig,omitempty"`
}

// JobOutputDataConfig wraps the output location union.
type JobOutputDataConfig struct {
	S3OutputDataConfig *S3OutputDataConfig `json:"s3OutputDataConfig,omitempty"`
}

// CreateModelInvocationJobRequest creates a batch inference job.
type CreateModelInvocationJobRequest struct {
	JobName          string              `json:"jobName"`
	ModelID          string              `json:"modelId"`
	RoleARN          string              `json:"roleArn"`
	InputDataConfig  JobInputDataConfig  `json:"inputDataConfig"`
	OutputDataConfig JobOutputDataConfig `json:"outputDataConfig"`
	TimeoutDurationInHours *int64       `json:"timeoutDurationInHours,omitempty"`
}

// CreateModelInvocationJobResponse returns the new job ARN.
type CreateModelInvocationJobResponse struct {
	JobARN string `json:"jobArn"`
}

// ModelInvocationJob is the batch job record returned by Get and List.
type ModelInvocationJob struct {
	JobARN           string               `json:"jobArn"`
	JobName          string               `json:"jobName"`
	ModelID          string               `json:"modelId"`
	Status           string               `json:"status"`
	Message          string               `json:"message,omitempty"`
	SubmitTime       string               `json:"submitTime"`
	LastModifiedTime string               `json:"lastModifiedTime,omitempty"`
	EndTime          string               `json:"endTime,omitempty"`
	JobExpirationTime string              `json:"jobExpirationTime,omitempty"`
	InputDataConfig  *JobInputDataConfig  `json:"inputDataConfig,omitempty"`
	OutputDataConfig *JobOutputDataConfig `json:"outputDataConfig,omitempty"`
}

// ListModelInvocationJobsResponse is the batch job listing.
type ListModelInvocationJobsResponse struct {
	NextToken             string               `json:"nextToken,omitempty"`
	InvocationJobSummaries []ModelInvocationJob `json:"invocationJobSummaries"`
}

// TrainingDataConfig locates the training file of a customization job.
type TrainingDataConfig struct {
	S3URI string `json:"s3Uri"`
}

// ValidationDataConfig lists validation files of a customization job.
type ValidationDataConfig struct {
	Validators []TrainingDataConfig `json:"validators,omitempty"`
}

// OutputDataConfig locates the output prefix of a customization job.
type OutputDataConfig struct {
	S3URI string `json:"s3Uri"`
}

// CreateModelCustomizationJobRequest creates a fine-tuning job.
type CreateModelCustomizationJobRequest struct {
	JobName              string                `json:"jobName"`
	CustomModelName      string                `json:"customModelName"`
	RoleARN              string                `json:"roleArn"`
	BaseModelIdentifier  string                `json:"baseModelIdentifier"`
	CustomizationType    string                `json:"customizationType,omitempty"`
	TrainingDataConfig   TrainingDataConfig    `json:"trainingDataConfig"`
	ValidationDataConfig *ValidationDataConfig `json:"validationDataConfig,omitempty"`
	OutputDataConfig     OutputDataConfig      `json:"outputDataConfig"`
	HyperParameters      map[string]string     `json:"hyperParameters,omitempty"`
}

// CreateModelCustomizationJobResponse returns the new job ARN.
type CreateModelCustomizationJobResponse struct {
	JobARN string `json:"jobArn"`
}

// ModelCustomizationJob is the fine-tuning job record returned by Get and List.
type ModelCustomizationJob struct {
	JobARN               string                `json:"jobArn"`
	JobName              string                `json:"jobName"`
	BaseModelARN         string                `json:"baseModelArn,omitempty"`
	OutputModelName      string                `json:"outputModelName,omitempty"`
	OutputModelARN       string                `json:"outputModelArn,omitempty"`
	Status               string                `json:"status"`
	FailureMessage       string                `json:"failureMessage,omitempty"`
	CreationTime         string                `json:"creationTime"`
	LastModifiedTime     string                `json:"lastModifiedTime,omitempty"`
	EndTime              string                `json:"endTime,omitempty"`
	TrainingDataConfig   *TrainingDataConfig   `json:"trainingDataConfig,omitempty"`
	OutputDataConfig     *OutputDataConfig     `json:"outputDataConfig,omitempty"`
	HyperParameters      map[string]string     `json:"hyperParameters,omitempty"`
}

// ListModelCustomizationJobsResponse is the fine-tuning job listing.
type ListModelCustomizationJobsResponse struct {
	NextToken                string                  `json:"nextToken,omitempty"`
	ModelCustomizationJobSummaries []ModelCustomizationJob `json:"modelCustomizationJobSummaries"`
}

// BatchRecord is one input row of a model-invocation JSONL object.
type BatchRecord struct {
	RecordID   string `json:"recordId"`
	ModelInput any    `json:"modelInput"`
}

// BatchResultRecord is one output row of a completed model-invocation job.
type BatchResultRecord struct {
	RecordID    string         `json:"recordId"`
	ModelInput  map[string]any `json:"modelInput,omitempty"`
	ModelOutput map[string]any `json:"modelOutput,omitempty"`
	Error       *BedrockException `json:"error,omitempty"`
}
