package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// jobStatuses maps the AWS PascalCase job status enum to the canonical
// snake_case one. Both invocation and customization jobs use the same values.
var jobStatuses = map[string]string{
	awsbedrock.JobStatusSubmitted:          openai.JobStatusValidating,
	awsbedrock.JobStatusValidating:         openai.JobStatusValidating,
	awsbedrock.JobStatusScheduled:          openai.JobStatusValidating,
	awsbedrock.JobStatusInProgress:         openai.JobStatusInProgress,
	awsbedrock.JobStatusCompleted:          openai.JobStatusCompleted,
	awsbedrock.JobStatusPartiallyCompleted: openai.JobStatusCompleted,
	awsbedrock.JobStatusFailed:             openai.JobStatusFailed,
	awsbedrock.JobStatusStopping:           openai.JobStatusCancelling,
	awsbedrock.JobStatusStopped:            openai.JobStatusCancelled,
	awsbedrock.JobStatusExpired:            openai.JobStatusExpired,
}

func mapJobStatus(awsStatus string) string {
	if s, ok := jobStatuses[awsStatus]; ok {
		return s
	}
	return openai.JobStatusInProgress
}

// awsTime parses the RFC3339 timestamps the job APIs return; zero on absence
// or parse failure so callers can rely on omitempty.
func awsTime(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}

// jobID encodes a job ARN as a canonical resource id usable in URL paths.
func jobID(arn string) string {
	return url.QueryEscape(arn)
}

// jobARN reverses jobID.
func jobARN(id string) (string, error) {
	arn, err := url.QueryUnescape(id)
	if err != nil || arn == "" {
		return "", newValidationError(fmt.Sprintf("invalid job id %q", id))
	}
	return arn, nil
}

// BuildCreateBatchRequest maps a canonical batch creation to the
// CreateModelInvocationJob body. The model and execution role come from the
// target headers; the input object is the decoded canonical file id and the
// output prefix sits next to it under batch-output/.
func BuildCreateBatchRequest(t *Target, req *openai.CreateBatchRequest) (*awsbedrock.CreateModelInvocationJobRequest, error) {
	if req.InputFileID == "" {
		return nil, newValidationError("input_file_id is required")
	}
	if t.Model == "" {
		return nil, newValidationError(fmt.Sprintf("missing %s%s header", HeaderPrefix, headerModel))
	}
	if t.RoleARN == "" {
		return nil, newValidationError(fmt.Sprintf("batch jobs require %s%s", HeaderPrefix, headerRoleARN))
	}
	bucket, key, err := decodeFileID(req.InputFileID)
	if err != nil {
		return nil, err
	}
	jobName := "batch-" + uuid.NewString()
	return &awsbedrock.CreateModelInvocationJobRequest{
		JobName: jobName,
		ModelID: t.Model,
		RoleARN: t.RoleARN,
		InputDataConfig: awsbedrock.JobInputDataConfig{
			S3InputDataConfig: &awsbedrock.S3InputDataConfig{
				S3URI:         "s3://" + bucket + "/" + key,
				S3InputFormat: "JSONL",
			},
		},
		OutputDataConfig: awsbedrock.JobOutputDataConfig{
			S3OutputDataConfig: &awsbedrock.S3OutputDataConfig{
				S3URI:             "s3://" + bucket + "/batch-output/" + jobName + "/",
				S3EncryptionKeyID: t.KMSKeyID,
			},
		},
	}, nil
}

// BatchFromJob maps a ModelInvocationJob record to the canonical batch.
func BatchFromJob(job *awsbedrock.ModelInvocationJob) *openai.Batch {
	status := mapJobStatus(job.Status)
	out := &openai.Batch{
		ID:        jobID(job.JobARN),
		Object:    "batch",
		Endpoint:  "/v1/chat/completions",
		Status:    status,
		CreatedAt: awsTime(job.SubmitTime),
	}
	if in := job.InputDataConfig; in != nil && in.S3InputDataConfig != nil {
		if bucket, key, ok := splitS3URI(in.S3InputDataConfig.S3URI); ok {
			out.InputFileID = encodeFileID(bucket, key)
		}
	}
	end := awsTime(job.EndTime)
	switch status {
	case openai.JobStatusCompleted:
		out.CompletedAt = end
		if o := job.OutputDataConfig; o != nil && o.S3OutputDataConfig != nil {
			if bucket, prefix, ok := splitS3URI(o.S3OutputDataConfig.S3URI); ok {
				out.OutputFileID = encodeFileID(bucket, batchOutputKey(prefix, job.JobARN, job.InputDataConfig))
			}
		}
	case openai.JobStatusFailed:
		out.FailedAt = end
		if job.Message != "" {
			out.Errors = &openai.BatchErrors{
				Object: "list",
				Data:   []openai.BatchError{{Message: job.Message}},
			}
		}
	case openai.JobStatusCancelled:
		out.CancelledAt = end
	case openai.JobStatusExpired:
		out.ExpiredAt = end
	case openai.JobStatusInProgress:
		out.InProgressAt = awsTime(job.LastModifiedTime)
	}
	return out
}

// batchOutputKey computes the object key of the rewritten results file:
// Bedrock writes {prefix}/{jobId}/{inputFileName}.out.
func batchOutputKey(prefix, arn string, in *awsbedrock.JobInputDataConfig) string {
	prefix = strings.TrimSuffix(prefix, "/")
	jobPart := arn
	if i := strings.LastIndexByte(arn, '/'); i >= 0 {
		jobPart = arn[i+1:]
	}
	inputName := "records.jsonl"
	if in != nil && in.S3InputDataConfig != nil {
		if _, key, ok := splitS3URI(in.S3InputDataConfig.S3URI); ok {
			if i := strings.LastIndexByte(key, '/'); i >= 0 {
				key = key[i+1:]
			}
			if key != "" {
				inputName = key
			}
		}
	}
	return prefix + "/" + jobPart + "/" + inputName + ".out"
}

// BatchListFromJobs maps a job listing to the canonical batch list.
func BatchListFromJobs(list *awsbedrock.ListModelInvocationJobsResponse) *openai.BatchList {
	out := &openai.BatchList{Object: "list", Data: []openai.Batch{}}
	for i := range list.InvocationJobSummaries {
		out.Data = append(out.Data, *BatchFromJob(&list.InvocationJobSummaries[i]))
	}
	out.HasMore = list.NextToken != ""
	return out
}

// Hyperparameter names: canonical → CreateModelCustomizationJob.
var hyperparameterNames = map[string]string{
	"n_epochs":                 "epochCount",
	"batch_size":               "batchSize",
	"learning_rate_multiplier": "learningRateMultiplier",
}

// BuildCreateFineTuneRequest maps a canonical fine-tuning job creation to the
// CreateModelCustomizationJob body.
func BuildCreateFineTuneRequest(t *Target, req *openai.CreateFineTuningJobRequest) (*awsbedrock.CreateModelCustomizationJobRequest, error) {
	if req.Model == "" {
		return nil, newValidationError("model is required")
	}
	if req.TrainingFile == "" {
		return nil, newValidationError("training_file is required")
	}
	if t.RoleARN == "" {
		return nil, newValidationError(fmt.Sprintf("fine-tuning jobs require %s%s", HeaderPrefix, headerRoleARN))
	}
	bucket, key, err := decodeFileID(req.TrainingFile)
	if err != nil {
		return nil, err
	}

	jobName := "ft-" + uuid.NewString()
	modelName := jobName
	if req.Suffix != "" {
		modelName = req.Suffix + "-" + uuid.NewString()[:8]
	}
	out := &awsbedrock.CreateModelCustomizationJobRequest{
		JobName:             jobName,
		CustomModelName:     modelName,
		RoleARN:             t.RoleARN,
		BaseModelIdentifier: req.Model,
		CustomizationType:   "FINE_TUNING",
		TrainingDataConfig:  awsbedrock.TrainingDataConfig{S3URI: "s3://" + bucket + "/" + key},
		OutputDataConfig: awsbedrock.OutputDataConfig{
			S3URI: "s3://" + bucket + "/fine-tune-output/" + jobName + "/",
		},
	}
	if req.ValidationFile != "" {
		vb, vk, err := decodeFileID(req.ValidationFile)
		if err != nil {
			return nil, err
		}
		out.ValidationDataConfig = &awsbedrock.ValidationDataConfig{
			Validators: []awsbedrock.TrainingDataConfig{{S3URI: "s3://" + vb + "/" + vk}},
		}
	}
	for name, value := range req.Hyperparameters {
		mapped, ok := hyperparameterNames[name]
		if !ok {
			continue
		}
		if out.HyperParameters == nil {
			out.HyperParameters = map[string]string{}
		}
		out.HyperParameters[mapped] = fmt.Sprintf("%v", value)
	}
	return out, nil
}

// FineTuneFromJob maps a ModelCustomizationJob record to the canonical job.
func FineTuneFromJob(job *awsbedrock.ModelCustomizationJob) *openai.FineTuningJob {
	status := mapJobStatus(job.Status)
	out := &openai.FineTuningJob{
		ID:             jobID(job.JobARN),
		Object:         "fine_tuning.job",
		Model:          job.BaseModelARN,
		Status:         status,
		CreatedAt:      awsTime(job.CreationTime),
		FineTunedModel: job.OutputModelARN,
	}
	if out.FineTunedModel == "" {
		out.FineTunedModel = job.OutputModelName
	}
	switch status {
	case openai.JobStatusCompleted, openai.JobStatusFailed, openai.JobStatusCancelled:
		out.FinishedAt = awsTime(job.EndTime)
	}
	if job.FailureMessage != "" {
		out.Error = &openai.ErrorDetail{Message: job.FailureMessage}
	}
	if tc := job.TrainingDataConfig; tc != nil {
		if bucket, key, ok := splitS3URI(tc.S3URI); ok {
			out.TrainingFile = encodeFileID(bucket, key)
		}
	}
	if len(job.HyperParameters) > 0 {
		out.Hyperparameters = map[string]any{}
		for mapped, value := range job.HyperParameters {
			for name, aws := range hyperparameterNames {
				if aws == mapped {
					out.Hyperparameters[name] = value
				}
			}
		}
	}
	return out
}

// FineTuneListFromJobs maps a job listing to the canonical list.
func FineTuneListFromJobs(list *awsbedrock.ListModelCustomizationJobsResponse) *openai.FineTuningJobList {
	out := &openai.FineTuningJobList{Object: "list", Data: []openai.FineTuningJob{}}
	for i := range list.ModelCustomizationJobSummaries {
		out.Data = append(out.Data, *FineTuneFromJob(&list.ModelCustomizationJobSummaries[i]))
	}
	out.HasMore = list.NextToken != ""
	return out
}

// TransformBatchInputLine rewrites one canonical batch JSONL row into the
// Bedrock record format: {"custom_id", "body"} becomes
// {"recordId", "modelInput"} with the body converted to the native request of
// the row's model family. Rows naming a family without an invoke body are
// rejected before anything uploads.
func TransformBatchInputLine(line []byte) ([]byte, error) {
	var row struct {
		CustomID string          `json:"custom_id"`
		Body     json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(line, &row); err != nil {
		return nil, newValidationError("malformed batch input line: " + err.Error())
	}
	if row.CustomID == "" {
		return nil, newValidationError("batch input line has no custom_id")
	}
	if len(row.Body) == 0 {
		return nil, newValidationError("batch input line has no body")
	}
	model := gjson.GetBytes(row.Body, "model").String()
	if model == "" {
		return nil, newValidationError("batch input line body has no model")
	}

	var modelInput []byte
	var err error
	if modelFamily(model) == "anthropic" {
		modelInput, err = BuildAnthropicInvokeRequest(row.Body)
	} else {
		modelInput, err = BuildInvokeChatRequest(model, row.Body)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(&awsbedrock.BatchRecord{
		RecordID:   row.CustomID,
		ModelInput: json.RawMessage(modelInput),
	})
}

// TransformBatchOutputLine rewrites one Bedrock result record into the
// canonical batch output row. The native model output converts back to a
// canonical chat completion; errors surface in the row's error field.
func TransformBatchOutputLine(line []byte, requestID string) ([]byte, error) {
	var record awsbedrock.BatchResultRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return nil, newTransformError("malformed batch output line: " + err.Error())
	}
	row := &openai.BatchOutputRow{
		ID:       "batch_req_" + uuid.NewString(),
		CustomID: record.RecordID,
	}
	switch {
	case record.Error != nil:
		row.Error = &openai.ErrorDetail{Message: record.Error.Message}
	case record.ModelOutput != nil:
		native, err := json.Marshal(record.ModelOutput)
		if err != nil {
			return nil, newTransformError(err.Error())
		}
		body, err := AnthropicResponseToOpenAI(native, "")
		if err != nil {
			return nil, err
		}
		row.Response = &openai.BatchOutputResponse{
			StatusCode: 200,
			RequestID:  requestID,
			Body:       body,
		}
	default:
		row.Error = &openai.ErrorDetail{Message: "record has neither modelOutput nor error"}
	}
	return json.Marshal(row)
}

// CreateBatch submits a model-invocation job and returns its canonical
// record.
func (g *Gateway) CreateBatch(ctx context.Context, t *Target, req *openai.CreateBatchRequest) (*openai.Batch, error) {
	jobReq, err := BuildCreateBatchRequest(t, req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(jobReq)
	if err != nil {
		return nil, err
	}
	out, _, err := g.call(ctx, OpCreateBatch, t, "", body)
	if err != nil {
		return nil, err
	}
	var created awsbedrock.CreateModelInvocationJobResponse
	if err := json.Unmarshal(out, &created); err != nil {
		return nil, newTransformError("unmarshal create job response: " + err.Error())
	}
	return g.RetrieveBatch(ctx, t, jobID(created.JobARN))
}

// RetrieveBatch fetches one batch by its canonical id (URL-encoded job ARN).
func (g *Gateway) RetrieveBatch(ctx context.Context, t *Target, id string) (*openai.Batch, error) {
	arn, err := jobARN(id)
	if err != nil {
		return nil, err
	}
	out, _, err := g.call(ctx, OpRetrieveBatch, t, arn, nil)
	if err != nil {
		return nil, err
	}
	var job awsbedrock.ModelInvocationJob
	if err := json.Unmarshal(out, &job); err != nil {
		return nil, newTransformError("unmarshal job: " + err.Error())
	}
	return BatchFromJob(&job), nil
}

// ListBatches lists model-invocation jobs with normalized statuses.
func (g *Gateway) ListBatches(ctx context.Context, t *Target) (*openai.BatchList, error) {
	out, _, err := g.call(ctx, OpListBatches, t, "", nil)
	if err != nil {
		return nil, err
	}
	var list awsbedrock.ListModelInvocationJobsResponse
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, newTransformError("unmarshal job list: " + err.Error())
	}
	return BatchListFromJobs(&list), nil
}

// CancelBatch stops the job, then re-reads it once so the caller sees the
// actual status (usually cancelling) rather than a synthetic one.
func (g *Gateway) CancelBatch(ctx context.Context, t *Target, id string) (*openai.Batch, error) {
	arn, err := jobARN(id)
	if err != nil {
		return nil, err
	}
	if _, _, err := g.call(ctx, OpCancelBatch, t, arn, nil); err != nil {
		return nil, err
	}
	return g.RetrieveBatch(ctx, t, id)
}

// GetBatchOutput streams the rewritten result rows of a completed batch.
func (g *Gateway) GetBatchOutput(ctx context.Context, t *Target, id string, w io.Writer) error {
	batch, err := g.RetrieveBatch(ctx, t, id)
	if err != nil {
		return err
	}
	if batch.OutputFileID == "" {
		return newValidationError(fmt.Sprintf("batch %s has no output (status %s)", batch.ID, batch.Status))
	}
	return g.RetrieveFileContent(ctx, t, batch.OutputFileID, w)
}

// CreateFineTune submits a model-customization job.
func (g *Gateway) CreateFineTune(ctx context.Context, t *Target, req *openai.CreateFineTuningJobRequest) (*openai.FineTuningJob, error) {
	jobReq, err := BuildCreateFineTuneRequest(t, req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(jobReq)
	if err != nil {
		return nil, err
	}
	out, _, err := g.call(ctx, OpCreateFineTune, t, "", body)
	if err != nil {
		return nil, err
	}
	var created awsbedrock.CreateModelCustomizationJobResponse
	if err := json.Unmarshal(out, &created); err != nil {
		return nil, newTransformError("unmarshal create job response: " + err.Error())
	}
	return g.RetrieveFineTune(ctx, t, jobID(created.JobARN))
}

// RetrieveFineTune fetches one fine-tuning job by its canonical id.
func (g *Gateway) RetrieveFineTune(ctx context.Context, t *Target, id string) (*openai.FineTuningJob, error) {
	arn, err := jobARN(id)
	if err != nil {
		return nil, err
	}
	out, _, err := g.call(ctx, OpRetrieveFineTune, t, arn, nil)
	if err != nil {
		return nil, err
	}
	var job awsbedrock.ModelCustomizationJob
	if err := json.Unmarshal(out, &job); err != nil {
		return nil, newTransformError("unmarshal job: " + err.Error())
	}
	return FineTuneFromJob(&job), nil
}

// ListFineTunes lists model-customization jobs.
func (g *Gateway) ListFineTunes(ctx context.Context, t *Target) (*openai.FineTuningJobList, error) {
	out, _, err := g.call(ctx, OpListFineTunes, t, "", nil)
	if err != nil {
		return nil, err
	}
	var list awsbedrock.ListModelCustomizationJobsResponse
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, newTransformError("unmarshal job list: " + err.Error())
	}
	return FineTuneListFromJobs(&list), nil
}

// CancelFineTune stops the job, then re-reads it once.
func (g *Gateway) CancelFineTune(ctx context.Context, t *Target, id string) (*openai.FineTuningJob, error) {
	arn, err := jobARN(id)
	if err != nil {
		return nil, err
	}
	if _, _, err := g.call(ctx, OpCancelFineTune, t, arn, nil); err != nil {
		return nil, err
	}
	return g.RetrieveFineTune(ctx, t, id)
}
