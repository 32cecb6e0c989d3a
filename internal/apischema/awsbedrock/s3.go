package awsbedrock

import "encoding/xml"

// S3 XML documents used by the multipart file bridge.

// InitiateMultipartUploadResult is the response of POST /{key}?uploads.
type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

// CompleteMultipartUpload is the request body of POST /{key}?uploadId=U.
// Parts must be listed in ascending PartNumber order.
type CompleteMultipartUpload struct {
	XMLName xml.Name        `xml:"CompleteMultipartUpload"`
	Parts   []CompletedPart `xml:"Part"`
}

// CompletedPart pairs a part number with the ETag the server acknowledged.
type CompletedPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipartUploadResult is the completion response.
type CompleteMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// GetObjectAttributesOutput is the response of GET /{key}?attributes.
// The root element name is left unchecked; only ObjectSize matters here.
type GetObjectAttributesOutput struct {
	ETag       string `xml:"ETag"`
	ObjectSize int64  `xml:"ObjectSize"`
}

// S3Error is the XML error body of the S3 API.
type S3Error struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource"`
	RequestID string   `xml:"RequestId"`
}
