package domain

import "time"

// ServiceKind identifies the remote service an export targets.
type ServiceKind string

const (
	ServiceClaude     ServiceKind = "claude"
	ServiceChatGPT    ServiceKind = "chatgpt"
	ServiceGemini     ServiceKind = "gemini"
	ServicePerplexity ServiceKind = "perplexity"
)

// UploadResult is the outcome of one export attempt.
type UploadResult struct {
	Success    bool
	FileID     string
	Message    string
	Content    string // rendered document, kept for clipboard-style reuse
	Service    ServiceKind
	ExportedAt time.Time
}

// SuccessResult builds a successful result.
func SuccessResult(fileID, message string, service ServiceKind) *UploadResult {
	return &UploadResult{
		Success:    true,
		FileID:     fileID,
		Message:    message,
		Service:    service,
		ExportedAt: time.Now(),
	}
}

// ErrorResult builds a failed result.
func ErrorResult(message string, service ServiceKind) *UploadResult {
	return &UploadResult{
		Success:    false,
		Message:    message,
		Service:    service,
		ExportedAt: time.Now(),
	}
}
