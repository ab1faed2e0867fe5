package domain

import "time"

// QAPair is one extracted interview question with the candidate's answer.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Transcript is an uploaded interview transcript. The text itself is stored only as an encrypted
// envelope; the remaining fields are plaintext metadata.
type Transcript struct {
	ID               string
	UserID           string
	OriginalFilename string
	// EncryptedContent is the vault envelope of the transcript text.
	EncryptedContent string
	// ContentHash is the hex SHA-256 of the plaintext, checked after every decryption.
	ContentHash          string
	FileSize             int64
	QAPairs              []QAPair
	QAPairsCount         int
	ProcessingDurationMs int64
	CreatedAt            time.Time
}

// Metadata returns a copy of t without the encrypted content.
func (t *Transcript) Metadata() *Transcript {
	if t == nil {
		return nil
	}
	c := *t
	c.EncryptedContent = ""
	return &c
}
