package model

// Upload is one audio file received from the browser.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Size returns the number of audio bytes.
func (u Upload) Size() int {
	return len(u.Data)
}
