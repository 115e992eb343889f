package models

import (
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表，简历每次成功入库后upsert一条
type Candidate struct {
	CandidateID string `gorm:"type:char(36);primaryKey"`
	Name        string `gorm:"type:varchar(255)"`
	// OriginalFilename 上传时的文件名
	OriginalFilename string `gorm:"type:varchar(255)"`
	// OriginalFilePathOSS 原始文件在对象存储中的路径
	OriginalFilePathOSS string `gorm:"type:varchar(1024)"`
	// ParsedTextPathOSS 解析文本在对象存储中的路径
	ParsedTextPathOSS string `gorm:"type:varchar(1024)"`
	// RawTextMD5 解析文本的MD5，用于去重
	RawTextMD5 string `gorm:"type:char(32);index:idx_candidates_raw_text_md5"`
	// ProfileJSON 结构化画像（技能/年限/学历/证书）
	ProfileJSON datatypes.JSON `gorm:"type:json"`
	// ResumeText 解析后的简历全文
	ResumeText       string    `gorm:"type:mediumtext"`
	ProcessingStatus string    `gorm:"type:varchar(50);default:'PENDING';index:idx_candidates_status"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Job 岗位信息表
type Job struct {
	JobID              string `gorm:"type:char(36);primaryKey"`
	JobTitle           string `gorm:"type:varchar(255);not null"`
	JobDescriptionText string `gorm:"type:text;not null"`
	// RequirementsJSON 从岗位描述解析出的结构化要求
	RequirementsJSON datatypes.JSON `gorm:"type:json"`
	Status           string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// MatchScore 候选人-岗位匹配得分表
// (candidate_id, job_id)唯一，重复评估覆盖旧结果
type MatchScore struct {
	MatchID     uint64 `gorm:"primaryKey;autoIncrement"`
	CandidateID string `gorm:"type:char(36);not null;index:idx_ms_candidate_id;uniqueIndex:idx_ms_candidate_job_unique,priority:1"`
	JobID       string `gorm:"type:char(36);not null;index:idx_ms_job_id_score,priority:1;uniqueIndex:idx_ms_candidate_job_unique,priority:2"`
	// Score 最终加权得分
	Score float64 `gorm:"type:double;index:idx_ms_job_id_score,priority:2"`
	// ComponentsJSON 四个分项得分
	ComponentsJSON datatypes.JSON `gorm:"type:json"`
	// Eligible 是否通过资格门槛
	Eligible    bool      `gorm:"not null;default:false"`
	EvaluatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	CreatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt   time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Job       *Job       `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (MatchScore) TableName() string {
	return "match_scores"
}

// 候选人处理状态
const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusDuplicate = "DUPLICATE"
	StatusFailed    = "FAILED"
)
