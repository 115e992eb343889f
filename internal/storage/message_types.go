package storage

import "time"

// ResumeUploadedMessage 简历上传完成后发布的事件
// 消费方从对象存储取回文件并执行解析入库
type ResumeUploadedMessage struct {
	CandidateID         string    `json:"candidate_id"`
	OriginalFilePathOSS string    `json:"original_file_path_oss"`
	OriginalFilename    string    `json:"original_filename"`
	TargetJobID         string    `json:"target_job_id,omitempty"`
	SubmittedAt         time.Time `json:"submitted_at"`
}

// MatchNeededMessage 需要对岗位重新计算匹配排名时发布的事件
type MatchNeededMessage struct {
	JobID string `json:"job_id"`
	// CandidateID 非空时只重算该候选人，否则重算全量
	CandidateID string    `json:"candidate_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
