package constants

import "time"

// 应用级默认值
const (
	// DefaultChunkSize 文档分块大小（字符数）
	DefaultChunkSize = 500

	// DefaultChunkOverlap 相邻分块的重叠字符数
	DefaultChunkOverlap = 50

	// DefaultTopKCandidates 排名输出的默认候选人数量
	DefaultTopKCandidates = 5

	// DefaultRetrievalTopK 问答检索的分块数量
	DefaultRetrievalTopK = 5

	// DefaultSkillThreshold 技能得分资格门槛
	DefaultSkillThreshold = 0.3

	// DefaultExperienceThreshold 经验得分资格门槛
	DefaultExperienceThreshold = 0.5

	// DefaultEmbeddingTimeout 单次嵌入调用的超时
	DefaultEmbeddingTimeout = 30 * time.Second

	// DefaultLLMTimeout 单次生成调用的超时
	DefaultLLMTimeout = 60 * time.Second
)

// 文档来源标签
const (
	TagResume         = "resume"
	TagJobDescription = "job_description"
	TagTranscript     = "transcript"
)
