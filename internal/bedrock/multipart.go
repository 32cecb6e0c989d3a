package bedrock

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/signer"
)

// partSize is the buffering threshold of the multipart uploader. S3 allows
// the final part to be smaller.
const partSize = 1 << 20

func s3Host(t *Target) string {
	return fmt.Sprintf("%s.s3.%s.amazonaws.com", t.S3Bucket, t.Region)
}

// s3Request builds, signs, and executes one raw S3 call. query is the raw
// query string without the leading "?".
func (g *Gateway) s3Request(ctx context.Context, t *Target, method, key, query string, body []byte, header http.Header) (*http.Response, error) {
	if t.S3Bucket == "" {
		return nil, newValidationError(fmt.Sprintf("missing %s%s header", HeaderPrefix, headerS3Bucket))
	}
	u := &url.URL{
		Scheme:   "https",
		Host:     s3Host(t),
		Path:     "/" + key,
		RawQuery: query,
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.rebase(u.String()), reader)
	if err != nil {
		return nil, err
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if err := g.signer.Sign(ctx, req, body, signer.ServiceS3, signOptions(t)); err != nil {
		return nil, g.asGatewayError(err)
	}
	return g.do(req, t)
}

// multipartUpload is one S3 multipart session. Parts upload strictly in
// order; a part is not initiated until the previous one has an ETag.
type multipartUpload struct {
	g        *Gateway
	t        *Target
	key      string
	uploadID string
	parts    []awsbedrock.CompletedPart
	buf      bytes.Buffer
	total    int64
}

// newMultipartUpload initiates the session. Server-side encryption headers
// from the target apply to the initiate call only, per the S3 API.
func (g *Gateway) newMultipartUpload(ctx context.Context, t *Target, key string) (*multipartUpload, error) {
	header := http.Header{}
	if t.ServerSideEncryption != "" {
		header.Set("x-amz-server-side-encryption", t.ServerSideEncryption)
		if t.KMSKeyID != "" {
			header.Set("x-amz-server-side-encryption-aws-kms-key-id", t.KMSKeyID)
		}
	}
	resp, err := g.s3Request(ctx, t, http.MethodPost, key, "uploads", nil, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var initiated awsbedrock.InitiateMultipartUploadResult
	if err := xml.NewDecoder(resp.Body).Decode(&initiated); err != nil {
		return nil, newTransformError("decode initiate multipart response: " + err.Error())
	}
	if initiated.UploadID == "" {
		return nil, newTransformError("initiate multipart response has no UploadId")
	}
	return &multipartUpload{g: g, t: t, key: key, uploadID: initiated.UploadID}, nil
}

// write buffers transformed output and flushes full parts.
func (u *multipartUpload) write(ctx context.Context, p []byte) error {
	u.buf.Write(p)
	for u.buf.Len() >= partSize {
		if err := u.flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// flush uploads the buffered bytes as the next part.
func (u *multipartUpload) flush(ctx context.Context) error {
	n := u.buf.Len()
	if n > partSize {
		n = partSize
	}
	if n == 0 {
		return nil
	}
	part := make([]byte, n)
	copy(part, u.buf.Bytes()[:n])
	u.buf.Next(n)

	partNumber := len(u.parts) + 1
	query := fmt.Sprintf("partNumber=%d&uploadId=%s", partNumber, url.QueryEscape(u.uploadID))
	resp, err := u.g.s3Request(ctx, u.t, http.MethodPut, u.key, query, part, nil)
	if err != nil {
		return err
	}
	etag := resp.Header.Get("ETag")
	resp.Body.Close()
	if etag == "" {
		return newTransformError(fmt.Sprintf("part %d upload returned no ETag", partNumber))
	}
	u.parts = append(u.parts, awsbedrock.CompletedPart{PartNumber: partNumber, ETag: etag})
	u.total += int64(n)
	return nil
}

// complete flushes the remainder and commits the object. At least one part
// must have been uploaded.
func (u *multipartUpload) complete(ctx context.Context) error {
	for u.buf.Len() > 0 {
		if err := u.flush(ctx); err != nil {
			return err
		}
	}
	if len(u.parts) == 0 {
		return newValidationError("upload contains no data")
	}
	doc, err := xml.Marshal(&awsbedrock.CompleteMultipartUpload{Parts: u.parts})
	if err != nil {
		return err
	}
	resp, err := u.g.s3Request(ctx, u.t, http.MethodPost, u.key, "uploadId="+url.QueryEscape(u.uploadID), doc, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var result awsbedrock.CompleteMultipartUploadResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return newTransformError("decode complete multipart response: " + err.Error())
	}
	return nil
}

// abort discards the session, best effort. Called on transform failures and
// client disconnects so S3 does not accumulate orphaned parts.
func (u *multipartUpload) abort(ctx context.Context) {
	resp, err := u.g.s3Request(ctx, u.t, http.MethodDelete, u.key, "uploadId="+url.QueryEscape(u.uploadID), nil, nil)
	if err != nil {
		u.g.logger.Warn("abort multipart upload failed",
			"key", u.key, "uploadId", u.uploadID, "error", err.Error())
		return
	}
	resp.Body.Close()
}
