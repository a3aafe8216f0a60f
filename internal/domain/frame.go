package domain

// EncodedImage is one compressed camera frame ready for transmission.
type EncodedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}
