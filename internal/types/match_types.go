package types

// EducationLevel 学历等级，按固定词表顺序识别
type EducationLevel string

const (
	// EducationNone 未识别出学历
	EducationNone EducationLevel = ""
	// EducationBachelor 本科
	EducationBachelor EducationLevel = "bachelor"
	// EducationMaster 硕士
	EducationMaster EducationLevel = "master"
	// EducationPhD 博士
	EducationPhD EducationLevel = "phd"
	// EducationBTech 印度本科工程学位（原始语料中常见）
	EducationBTech EducationLevel = "b.tech"
	// EducationMTech 印度硕士工程学位
	EducationMTech EducationLevel = "m.tech"
)

// ParsedProfile 从原始文本确定性解析出的结构化画像
// 一旦生成即不可变；源文本变化时整体重算
type ParsedProfile struct {
	// Skills 识别出的技能集合（小写，无重复）
	Skills []string `json:"skills"`

	// ExperienceYears 工作年限；nil 表示正则未命中（"无法解析"），
	// 与显式的0年区分开，由打分方决定默认策略
	ExperienceYears *float64 `json:"experience_years,omitempty"`

	// Education 识别出的最先命中的学历关键词
	Education EducationLevel `json:"education"`

	// Certifications 识别出的证书集合
	Certifications []string `json:"certifications"`
}

// HasSkill 判断画像中是否包含指定技能（技能已统一为小写）
func (p *ParsedProfile) HasSkill(skill string) bool {
	for _, s := range p.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// Chunk 文档分块，嵌入和检索的原子单元
type Chunk struct {
	// Text 分块文本内容
	Text string `json:"text"`

	// SourceID 来源文档标识（候选人/岗位的submission UUID或文件名）
	SourceID string `json:"source_id"`

	// ChunkIndex 该块在文档内的序号，与SourceID共同构成幂等键
	ChunkIndex int `json:"chunk_index"`

	// Tags 附加标签，例如 "resume" / "job_description" / "transcript"
	Tags []string `json:"tags,omitempty"`
}

// HasTag 判断分块是否带有指定标签
func (c *Chunk) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoreComponents 四个分项得分，均位于[0,1]
type ScoreComponents struct {
	Skill         float64 `json:"skill"`
	Experience    float64 `json:"experience"`
	EducationCert float64 `json:"education_cert"`
	Semantic      float64 `json:"semantic"`
}

// MatchResult 单个(候选人, 岗位)对的匹配结果
type MatchResult struct {
	// CandidateRef 候选人引用（submission UUID或调用方提供的标识）
	CandidateRef string `json:"candidate_ref"`

	// Score 最终得分，四个分项的固定凸组合，位于[0,1]
	Score float64 `json:"score"`

	// Components 分项得分
	Components ScoreComponents `json:"components"`

	// Eligible 是否通过资格门槛（未通过者会被计算但不进入排名输出）
	Eligible bool `json:"eligible"`
}

// RankedCandidate 排名输出中的一项
type RankedCandidate struct {
	CandidateRef string          `json:"candidate_ref"`
	Score        float64         `json:"score"`
	Components   ScoreComponents `json:"components"`
}

// SearchHit 向量检索命中项
type SearchHit struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}
