package matcher

import (
	"fmt"
	"math"
	"strings"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/types"
)

// Weights 最终得分的权重向量，整体配置、整体校验
type Weights struct {
	Skill         float64
	Experience    float64
	EducationCert float64
	Semantic      float64
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		Skill:         0.3,
		Experience:    0.2,
		EducationCert: 0.1,
		Semantic:      0.4,
	}
}

// Validate 权重必须非负且和为1（允许浮点误差）
func (w Weights) Validate() error {
	if w.Skill < 0 || w.Experience < 0 || w.EducationCert < 0 || w.Semantic < 0 {
		return fmt.Errorf("权重不能为负数")
	}
	sum := w.Skill + w.Experience + w.EducationCert + w.Semantic
	if math.Abs(sum-1.0) > 1e-3 {
		return fmt.Errorf("权重之和必须为1.0，当前为 %.4f", sum)
	}
	return nil
}

// WeightsFromConfig 从配置构建权重向量
func WeightsFromConfig(cfg config.WeightsConfig) Weights {
	return Weights{
		Skill:         cfg.Skill,
		Experience:    cfg.Experience,
		EducationCert: cfg.EducationCert,
		Semantic:      cfg.Semantic,
	}
}

// Scorer 对(候选人, 岗位)画像对计算分项得分和最终得分
type Scorer struct {
	weights             Weights
	skillThreshold      float64
	experienceThreshold float64
}

// ScorerOption 配置选项
type ScorerOption func(*Scorer)

// WithWeights 设置权重向量
func WithWeights(w Weights) ScorerOption {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithThresholds 设置资格门槛
func WithThresholds(skill, experience float64) ScorerOption {
	return func(s *Scorer) {
		s.skillThreshold = skill
		s.experienceThreshold = experience
	}
}

// NewScorer 创建打分器；权重不合法时返回错误
func NewScorer(options ...ScorerOption) (*Scorer, error) {
	s := &Scorer{
		weights:             DefaultWeights(),
		skillThreshold:      constants.DefaultSkillThreshold,
		experienceThreshold: constants.DefaultExperienceThreshold,
	}
	for _, option := range options {
		option(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Score 计算候选人对岗位的匹配结果
// semantic是候选人与岗位文本向量的余弦相似度，嵌入失败时调用方传0
func (s *Scorer) Score(candidateRef string, candidate, job types.ParsedProfile, semantic float64) types.MatchResult {
	components := types.ScoreComponents{
		Skill:         skillScore(candidate, job),
		Experience:    experienceScore(candidate, job),
		EducationCert: educationCertScore(candidate, job),
		Semantic:      clamp01(semantic),
	}

	score := s.weights.Skill*components.Skill +
		s.weights.Experience*components.Experience +
		s.weights.EducationCert*components.EducationCert +
		s.weights.Semantic*components.Semantic

	return types.MatchResult{
		CandidateRef: candidateRef,
		Score:        score,
		Components:   components,
		Eligible:     s.eligible(components),
	}
}

// eligible 技能和经验分都达到门槛才有资格进入排名
func (s *Scorer) eligible(c types.ScoreComponents) bool {
	return c.Skill >= s.skillThreshold && c.Experience >= s.experienceThreshold
}

// skillScore 候选人覆盖岗位要求技能的比例
// 岗位未列出任何技能时记0分（除零保护），此时没有候选人能通过技能门槛
func skillScore(candidate, job types.ParsedProfile) float64 {
	if len(job.Skills) == 0 {
		return 0.0
	}
	matched := 0
	for _, skill := range job.Skills {
		if candidate.HasSkill(skill) {
			matched++
		}
	}
	return float64(matched) / float64(len(job.Skills))
}

// experienceScore 候选人年限与岗位要求年限之比，封顶1.0
// 岗位未要求年限时得满分；候选人年限无法识别时得0
func experienceScore(candidate, job types.ParsedProfile) float64 {
	if job.ExperienceYears == nil || *job.ExperienceYears <= 0 {
		return 1.0
	}
	if candidate.ExperienceYears == nil {
		return 0.0
	}
	ratio := *candidate.ExperienceYears / *job.ExperienceYears
	if ratio > 1.0 {
		return 1.0
	}
	return ratio
}

// educationCertScore 学历占0.5，证书占0.5
// 学历按子串包含判断：岗位要求的学历词出现在候选人学历中即满足，
// 岗位无学历要求时该半部分直接满足；证书有任意交集即满足
func educationCertScore(candidate, job types.ParsedProfile) float64 {
	score := 0.0

	if strings.Contains(string(candidate.Education), string(job.Education)) {
		score += 0.5
	}

	if certOverlap(candidate.Certifications, job.Certifications) {
		score += 0.5
	}

	return score
}

// certOverlap 两个证书集合是否有交集
func certOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
