package task

import (
	"time"

	"mp3fetch/internal/events"
)

type Kind string

const (
	KindSingle     Kind = "single"
	KindCollection Kind = "collection"
)

type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ItemCounts tracks per-item outcomes of a collection task.
// Completed counts every item that reached a terminal outcome.
type ItemCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Transfer is the latest byte-level telemetry of the running acquisition.
type Transfer struct {
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	Speed           float64 `json:"speed"`
	ETASeconds      int     `json:"eta_seconds"`
}

// Task is the progress record of one submitted download.
type Task struct {
	ID               string      `json:"id"`
	Kind             Kind        `json:"kind"`
	Status           Status      `json:"status"`
	Progress         float64     `json:"progress"`
	Title            string      `json:"title"`
	SourceURL        string      `json:"source_url"`
	Items            *ItemCounts `json:"items,omitempty"`
	CurrentItemTitle string      `json:"current_item_title,omitempty"`
	Transfer         *Transfer   `json:"transfer,omitempty"`
	ResultArtifact   string      `json:"result_artifact,omitempty"`
	ArtifactName     string      `json:"artifact_name,omitempty"`
	ErrorKind        ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the record.
func (t Task) Clone() Task {
	if t.Items != nil {
		items := *t.Items
		t.Items = &items
	}
	if t.Transfer != nil {
		transfer := *t.Transfer
		t.Transfer = &transfer
	}
	return t
}

// Submission is returned synchronously by Manager.Submit.
type Submission struct {
	TaskID       string `json:"task_id"`
	IsCollection bool   `json:"is_collection"`
	Title        string `json:"title"`
	ItemsTotal   int    `json:"items_total,omitempty"`
	Status       Status `json:"status"`
}

type Options struct {
	// DataDir receives finished artifacts; every task stages in DataDir/work/<id>.
	DataDir            string
	MaxConcurrentTasks int
	CollectionWorkers  int
	ProbeTimeout       time.Duration
	// Extension of converted outputs, with a leading dot.
	Extension string
	Store     Store
	Publisher events.Publisher
}

const (
	defaultMaxConcurrent     = 3
	defaultCollectionWorkers = 3
	defaultProbeTimeout      = 60 * time.Second
	defaultExtension         = ".mp3"
	workDirName              = "work"
	archiveExtension         = ".zip"
	publishTimeout           = 5 * time.Second
)
