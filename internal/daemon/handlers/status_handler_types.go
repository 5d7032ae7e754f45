package handlers

// StatusResponse represents the health status of the daemon.
type StatusResponse struct {
	Status      string       `json:"status"`    // health status ("ok")
	Timestamp   string       `json:"ts"`        // when the status was taken
	Version     string       `json:"version"`   // daemon version
	Revision    string       `json:"revision"`  // daemon revision
	BuildDate   string       `json:"buildDate"` // daemon build date
	Rclone      string       `json:"rclone"`    // first line of `rclone version`
	StartedAt   string       `json:"startedAt"`
	Uptime      string       `json:"uptime"`
	Mounts      *MountCounts `json:"mounts"`
	Tasks       *TaskCounts  `json:"tasks"`
	Remotes     int          `json:"remotes"`
	Subscribers int          `json:"subscribers"`
}

type MountCounts struct {
	Total      int `json:"total"`
	Mounted    int `json:"mounted"`
	Discovered int `json:"discovered"`
	Errored    int `json:"errored"`
}

type TaskCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Scheduled int `json:"scheduled"`
	Errored   int `json:"errored"`
}
