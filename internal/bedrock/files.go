package bedrock

import (
	"bufio"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// maxLineSize bounds a single JSONL line during upload and retrieval.
const maxLineSize = 10 << 20

// encodeFileID produces the canonical file id: the URL-encoded s3:// URI.
func encodeFileID(bucket, key string) string {
	return url.QueryEscape("s3://" + bucket + "/" + key)
}

// decodeFileID reverses encodeFileID.
func decodeFileID(id string) (bucket, key string, err error) {
	uri, err := url.QueryUnescape(id)
	if err != nil {
		return "", "", newValidationError(fmt.Sprintf("invalid file id %q", id))
	}
	bucket, key, ok := splitS3URI(uri)
	if !ok {
		return "", "", newValidationError(fmt.Sprintf("file id %q is not an s3 uri", id))
	}
	return bucket, key, nil
}

// splitS3URI splits "s3://bucket/key" into its components.
func splitS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// lineTransform rewrites one JSONL line for upload. The returned bytes do
// not include the line terminator.
type lineTransform func(line []byte) ([]byte, error)

// uploadTransform selects the per-line rewrite for the file purpose and
// model type.
func uploadTransform(t *Target) (lineTransform, error) {
	switch t.FilePurpose {
	case openai.FilePurposeBatch, "":
		return TransformBatchInputLine, nil
	case openai.FilePurposeFineTune:
		if t.ModelType == "text" {
			return transformFineTuneTextLine, nil
		}
		return transformFineTuneChatLine, nil
	default:
		return nil, newValidationError(fmt.Sprintf("unsupported file purpose %q", t.FilePurpose))
	}
}

// transformFineTuneChatLine rewrites a canonical chat training row into the
// Bedrock customization format: system messages lift into the top-level
// system field, the rest keep role and flattened text content.
func transformFineTuneChatLine(line []byte) ([]byte, error) {
	var row struct {
		Messages []openai.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(line, &row); err != nil {
		return nil, newValidationError("malformed training line: " + err.Error())
	}
	if len(row.Messages) == 0 {
		return nil, newValidationError("training line has no messages")
	}

	out := struct {
		System   string `json:"system,omitempty"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}{}
	var system []string
	for i := range row.Messages {
		msg := &row.Messages[i]
		text, err := messageText(msg)
		if err != nil {
			return nil, newValidationError(err.Error())
		}
		switch msg.Role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleDeveloper:
			system = append(system, text)
		default:
			out.Messages = append(out.Messages, struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			}{Role: msg.Role, Content: text})
		}
	}
	out.System = strings.Join(system, "\n")
	return json.Marshal(&out)
}

// transformFineTuneTextLine validates and normalizes a prompt/completion row.
func transformFineTuneTextLine(line []byte) ([]byte, error) {
	var row struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	}
	if err := json.Unmarshal(line, &row); err != nil {
		return nil, newValidationError("malformed training line: " + err.Error())
	}
	if row.Prompt == "" || row.Completion == "" {
		return nil, newValidationError("training line requires prompt and completion")
	}
	return json.Marshal(&row)
}

// UploadFile streams the inbound file through the JSONL transform into a new
// S3 object via multipart upload. Rows are rewritten line by line; a
// malformed row aborts the upload before the object is committed.
func (g *Gateway) UploadFile(ctx context.Context, t *Target, filename string, file io.Reader) (*openai.FileObject, error) {
	if filename != "" && !strings.HasSuffix(filename, ".jsonl") {
		return nil, newValidationError(fmt.Sprintf("file %q is not a .jsonl file", filename))
	}
	transformLine, err := uploadTransform(t)
	if err != nil {
		return nil, err
	}

	purpose := t.FilePurpose
	if purpose == "" {
		purpose = openai.FilePurposeBatch
	}
	key := t.S3ObjectKey
	if key == "" {
		key = purpose + "/" + uuid.NewString() + ".jsonl"
	}

	upload, err := g.newMultipartUpload(ctx, t, key)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	lines := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		transformed, err := transformLine([]byte(line))
		if err != nil {
			upload.abort(ctx)
			return nil, err
		}
		// Bedrock's batch reader wants CRLF-terminated records.
		if err := upload.write(ctx, append(transformed, '\r', '\n')); err != nil {
			upload.abort(ctx)
			return nil, err
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		upload.abort(ctx)
		return nil, newValidationError("read upload body: " + err.Error())
	}
	if lines == 0 {
		upload.abort(ctx)
		return nil, newValidationError("file contains no JSONL rows")
	}
	if err := upload.complete(ctx); err != nil {
		upload.abort(ctx)
		return nil, err
	}

	return &openai.FileObject{
		ID:        encodeFileID(t.S3Bucket, key),
		Object:    "file",
		Bytes:     upload.total,
		CreatedAt: time.Now().Unix(),
		Filename:  "s3://" + t.S3Bucket + "/" + key,
		Purpose:   purpose,
		Status:    "processed",
	}, nil
}

// RetrieveFile reads the object attributes and composes the canonical file
// record. created_at comes from the Last-Modified header.
func (g *Gateway) RetrieveFile(ctx context.Context, t *Target, fileID string) (*openai.FileObject, error) {
	bucket, key, err := decodeFileID(fileID)
	if err != nil {
		return nil, err
	}
	scoped := *t
	scoped.S3Bucket = bucket

	header := http.Header{}
	header.Set("x-amz-object-attributes", "ObjectSize")
	resp, err := g.s3Request(ctx, &scoped, http.MethodGet, key, "attributes", nil, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var attrs awsbedrock.GetObjectAttributesOutput
	if err := xml.NewDecoder(resp.Body).Decode(&attrs); err != nil {
		return nil, newTransformError("decode object attributes: " + err.Error())
	}

	var createdAt int64
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if parsed, err := http.ParseTime(lm); err == nil {
			createdAt = parsed.Unix()
		}
	}
	return &openai.FileObject{
		ID:        encodeFileID(bucket, key),
		Object:    "file",
		Bytes:     attrs.ObjectSize,
		CreatedAt: createdAt,
		Filename:  "s3://" + bucket + "/" + key,
		Status:    "processed",
	}, nil
}

// RetrieveFileContent streams the object to w. Batch result objects are
// rewritten line by line into canonical batch output rows; everything else
// passes through unchanged.
func (g *Gateway) RetrieveFileContent(ctx context.Context, t *Target, fileID string, w io.Writer) error {
	bucket, key, err := decodeFileID(fileID)
	if err != nil {
		return err
	}
	scoped := *t
	scoped.S3Bucket = bucket

	resp, err := g.s3Request(ctx, &scoped, http.MethodGet, key, "", nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !batchResultObject(key) {
		_, err := io.Copy(w, resp.Body)
		return err
	}

	requestID := resp.Header.Get("x-amz-request-id")
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		row, err := TransformBatchOutputLine([]byte(line), requestID)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(row, '\n')); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// batchResultObject recognizes model-invocation job output objects by the
// key layout the job writer uses.
func batchResultObject(key string) bool {
	return strings.HasSuffix(key, ".out") || strings.Contains(key, "batch-output/")
}

// ListFiles is not supported by the Bedrock file bridge; S3 buckets have no
// canonical file listing semantics for the gateway to expose.
func (g *Gateway) ListFiles(context.Context, *Target) (*openai.FileObject, error) {
	return nil, newUnsupportedOperation(OpListFiles)
}

// DeleteFile is not supported by the Bedrock file bridge.
func (g *Gateway) DeleteFile(context.Context, *Target, string) (*openai.FileObject, error) {
	return nil, newUnsupportedOperation(OpDeleteFile)
}
