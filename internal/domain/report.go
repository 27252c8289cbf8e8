package domain

import "time"

// ReportRequest asks for an e-mail report over a filtered dataset.
type ReportRequest struct {
	Recipients   []string `json:"recipients"`
	Subject      string   `json:"subject,omitempty"`
	AttachCSV    *bool    `json:"attachCsv,omitempty"`
	HighRiskOnly bool     `json:"highRiskOnly,omitempty"`
	Filter       Filter   `json:"filter"`
}

// WantsCSV reports whether the CSV attachment was requested. The default is true.
func (r ReportRequest) WantsCSV() bool {
	return r.AttachCSV == nil || *r.AttachCSV
}

// Summary is the plain-text report built from the KPI bundle and the alert count.
type Summary struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DispatchResult is the outcome of a report dispatch.
type DispatchResult struct {
	ID         string    `json:"id"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Subject    string    `json:"subject,omitempty"`
	Recipients []string  `json:"recipients,omitempty"`
	AlertCount int       `json:"alertCount"`
	Attachment string    `json:"attachment,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}

// MailConfig holds SMTP settings for the report sender.
type MailConfig struct {
	SMTPServer string `yaml:"smtpServer"`
	SMTPPort   int    `yaml:"smtpPort"`
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	FromName   string `yaml:"fromName"`
}

// ReportConfig holds report dispatch settings.
type ReportConfig struct {
	// Default recipients when a request does not name any
	Recipients []string `yaml:"recipients"`

	// MaxPerHour caps dispatches per hour; 0 disables the cap
	MaxPerHour int `yaml:"maxPerHour"`

	// ResultTTL is how long dispatch results stay retrievable
	ResultTTL time.Duration `yaml:"resultTtl"`

	// Worker enables bus-driven report requests
	Worker bool `yaml:"worker"`
}
