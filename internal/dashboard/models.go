package dashboard

// RecType identifies the recorder backend family.
type RecType string

const (
	// RecTypeRecheme is the recheme recorder (room variant A).
	RecTypeRecheme RecType = "recheme"
	// RecTypeBlrec is the blrec recorder (room variant B).
	RecTypeBlrec RecType = "blrec"
)

// Valid reports whether t is one of the two known backends.
func (t RecType) Valid() bool {
	return t == RecTypeRecheme || t == RecTypeBlrec
}

// ParseRecType validates s as a RecType.
func ParseRecType(s string) (RecType, error) {
	t := RecType(s)
	if !t.Valid() {
		return "", validationError("recorder type must be %q or %q, got %q", RecTypeRecheme, RecTypeBlrec, s)
	}
	return t, nil
}

// ServerStatus is the health reported for a recorder server.
type ServerStatus string

const (
	ServerOnline  ServerStatus = "online"
	ServerOffline ServerStatus = "offline"
	ServerError   ServerStatus = "error"
)

// RecServer is one entry of the recorder-server registry.
// Identity is Host within Type.
type RecServer struct {
	Name   string       `json:"recName"`
	Type   RecType      `json:"recType"`
	Host   string       `json:"recHost"`
	Status ServerStatus `json:"recStatus"`
	Manage bool         `json:"recManage"`
}

// RecServerBinding is the recServer block embedded in both room shapes.
type RecServerBinding struct {
	Name   string  `json:"recName"`
	Type   RecType `json:"recType"`
	Host   string  `json:"recHost"`
	Manage bool    `json:"recManage"`
}

// RecServerRef is the normalized server binding of a room.
type RecServerRef struct {
	Name string  `json:"name"`
	Type RecType `json:"type"`
	Host string  `json:"host"`
}

// RechemeRoom is the recheme room shape (variant A).
type RechemeRoom struct {
	ObjectID                 string                 `json:"objectId"`
	RoomID                   int64                  `json:"roomId"`
	ShortID                  int64                  `json:"shortId"`
	Name                     string                 `json:"name"`
	UID                      int64                  `json:"uid"`
	Title                    string                 `json:"title"`
	AreaNameParent           string                 `json:"areaNameParent"`
	AreaNameChild            string                 `json:"areaNameChild"`
	Streaming                bool                   `json:"streaming"`
	Recording                bool                   `json:"recording"`
	DanmakuConnected         bool                   `json:"danmakuConnected"`
	AutoRecord               bool                   `json:"autoRecord"`
	AutoRecordForThisSession bool                   `json:"autoRecordForThisSession"`
	RecordingStats           *RechemeRecordingStats `json:"recordingStats,omitempty"`
	IOStats                  *RechemeIOStats        `json:"ioStats,omitempty"`
	RecServer                RecServerBinding       `json:"recServer"`
}

// RechemeRecordingStats holds recheme's per-session counters. Durations are
// in milliseconds.
type RechemeRecordingStats struct {
	SessionDuration     float64 `json:"sessionDuration"`
	TotalInputBytes     int64   `json:"totalInputBytes"`
	TotalOutputBytes    int64   `json:"totalOutputBytes"`
	CurrentFileSize     int64   `json:"currentFileSize"`
	SessionMaxTimestamp float64 `json:"sessionMaxTimestamp"`
	FileMaxTimestamp    float64 `json:"fileMaxTimestamp"`
	AddedDuration       float64 `json:"addedDuration"`
	PassedTime          float64 `json:"passedTime"`
}

// RechemeIOStats holds recheme's network and disk throughput figures.
type RechemeIOStats struct {
	StreamHost             *string `json:"streamHost"`
	StartTime              string  `json:"startTime"`
	EndTime                string  `json:"endTime"`
	Duration               float64 `json:"duration"`
	NetworkBytesDownloaded int64   `json:"networkBytesDownloaded"`
	NetworkMbps            float64 `json:"networkMbps"`
	DiskWriteDuration      float64 `json:"diskWriteDuration"`
	DiskBytesWritten       int64   `json:"diskBytesWritten"`
	DiskMBps               float64 `json:"diskMBps"`
}

// BlrecRoom is the blrec room shape (variant B).
type BlrecRoom struct {
	UserInfo   BlrecUserInfo    `json:"user_info"`
	RoomInfo   BlrecRoomInfo    `json:"room_info"`
	TaskStatus BlrecTaskStatus  `json:"task_status"`
	RecServer  RecServerBinding `json:"recServer"`
}

type BlrecUserInfo struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Face   string `json:"face"`
	UID    int64  `json:"uid"`
}

type BlrecRoomInfo struct {
	UID            int64  `json:"uid"`
	RoomID         int64  `json:"room_id"`
	ShortRoomID    int64  `json:"short_room_id"`
	AreaID         int64  `json:"area_id"`
	AreaName       string `json:"area_name"`
	ParentAreaID   int64  `json:"parent_area_id"`
	ParentAreaName string `json:"parent_area_name"`
	LiveStatus     int    `json:"live_status"`
	LiveStartTime  int64  `json:"live_start_time"`
	Online         int64  `json:"online"`
	Title          string `json:"title"`
	Cover          string `json:"cover"`
	Tags           string `json:"tags"`
	Description    string `json:"description"`
}

// BlrecTaskStatus is blrec's recorder task state. Rates are bytes per
// second, elapsed is in seconds.
type BlrecTaskStatus struct {
	MonitorEnabled         bool     `json:"monitor_enabled"`
	RecorderEnabled        bool     `json:"recorder_enabled"`
	RunningStatus          string   `json:"running_status"`
	StreamURL              string   `json:"stream_url"`
	StreamHost             string   `json:"stream_host"`
	DLTotal                int64    `json:"dl_total"`
	DLRate                 float64  `json:"dl_rate"`
	RecElapsed             float64  `json:"rec_elapsed"`
	RecTotal               int64    `json:"rec_total"`
	RecRate                float64  `json:"rec_rate"`
	DanmuTotal             int64    `json:"danmu_total"`
	DanmuRate              float64  `json:"danmu_rate"`
	RealStreamFormat       *string  `json:"real_stream_format"`
	RealQualityNumber      *int     `json:"real_quality_number"`
	RecordingPath          string   `json:"recording_path"`
	PostprocessorStatus    string   `json:"postprocessor_status"`
	PostprocessingPath     *string  `json:"postprocessing_path"`
	PostprocessingProgress *float64 `json:"postprocessing_progress"`
}

const (
	blrecLiveStatusLive   = 1
	blrecRunningRecording = "recording"
)
