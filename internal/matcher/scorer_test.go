package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-hire-go/internal/types"
)

func years(f float64) *float64 {
	return &f
}

func mustScorer(t *testing.T, options ...ScorerOption) *Scorer {
	t.Helper()
	s, err := NewScorer(options...)
	require.NoError(t, err)
	return s
}

// TestWeightsValidate 权重向量整体校验
func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())

	bad := Weights{Skill: 0.5, Experience: 0.5, EducationCert: 0.5, Semantic: 0.5}
	require.Error(t, bad.Validate())

	negative := Weights{Skill: -0.1, Experience: 0.5, EducationCert: 0.2, Semantic: 0.4}
	require.Error(t, negative.Validate())

	_, err := NewScorer(WithWeights(bad))
	require.Error(t, err, "不合法的权重不应创建出打分器")
}

// TestSkillScoreFraction 技能分是覆盖岗位要求的比例
func TestSkillScoreFraction(t *testing.T) {
	candidate := types.ParsedProfile{Skills: []string{"python"}}
	job := types.ParsedProfile{Skills: []string{"python", "tensorflow"}}

	assert.Equal(t, 0.5, skillScore(candidate, job))

	// 岗位未列出任何技能时记0分，而不是满分
	assert.Equal(t, 0.0, skillScore(candidate, types.ParsedProfile{}))

	// 候选人无技能且岗位有要求时得0
	assert.Equal(t, 0.0, skillScore(types.ParsedProfile{}, job))
}

// TestSkillGateWithEmptyJobSkills 岗位无技能列表时所有候选人都过不了技能门槛
func TestSkillGateWithEmptyJobSkills(t *testing.T) {
	s := mustScorer(t, WithThresholds(0.3, 0.5))

	candidate := types.ParsedProfile{
		Skills:          []string{"python", "tensorflow"},
		ExperienceYears: years(10),
	}

	result := s.Score("cand-1", candidate, types.ParsedProfile{}, 0.9)
	assert.Equal(t, 0.0, result.Components.Skill)
	assert.False(t, result.Eligible)
}

// TestExperienceScore 经验分按比例计算并封顶
func TestExperienceScore(t *testing.T) {
	job := types.ParsedProfile{ExperienceYears: years(4)}

	assert.Equal(t, 0.5, experienceScore(types.ParsedProfile{ExperienceYears: years(2)}, job))
	assert.Equal(t, 1.0, experienceScore(types.ParsedProfile{ExperienceYears: years(8)}, job), "超出要求的年限封顶为1")

	// 岗位未要求年限时得满分
	assert.Equal(t, 1.0, experienceScore(types.ParsedProfile{}, types.ParsedProfile{}))

	// 候选人年限无法识别且岗位有要求时得0
	assert.Equal(t, 0.0, experienceScore(types.ParsedProfile{}, job))
}

// TestEducationCertScore 学历与证书各占一半
func TestEducationCertScore(t *testing.T) {
	candidate := types.ParsedProfile{
		Education:      types.EducationMaster,
		Certifications: []string{"aws certified"},
	}

	// 学历满足 + 证书有交集
	job := types.ParsedProfile{
		Education:      types.EducationMaster,
		Certifications: []string{"aws certified", "gcp"},
	}
	assert.Equal(t, 1.0, educationCertScore(candidate, job))

	// 只有学历满足
	job = types.ParsedProfile{Education: types.EducationMaster, Certifications: []string{"gcp"}}
	assert.Equal(t, 0.5, educationCertScore(candidate, job))

	// 岗位无学历要求时学历半部分直接满足；无证书要求时证书半部分为0
	assert.Equal(t, 0.5, educationCertScore(candidate, types.ParsedProfile{}))

	// 学历不满足且证书无交集
	job = types.ParsedProfile{Education: types.EducationPhD, Certifications: []string{"gcp"}}
	assert.Equal(t, 0.0, educationCertScore(candidate, job))
}

// TestScoreConvexCombination 各分项全满时最终得分恰好为1
func TestScoreConvexCombination(t *testing.T) {
	s := mustScorer(t)

	candidate := types.ParsedProfile{
		Skills:          []string{"python", "tensorflow"},
		ExperienceYears: years(10),
		Education:       types.EducationMaster,
		Certifications:  []string{"aws certified"},
	}
	job := types.ParsedProfile{
		Skills:          []string{"python", "tensorflow"},
		ExperienceYears: years(5),
		Education:       types.EducationMaster,
		Certifications:  []string{"aws certified"},
	}

	result := s.Score("cand-1", candidate, job, 1.0)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.True(t, result.Eligible)
}

// TestScoreWeightedSum 最终得分是分项的加权和
func TestScoreWeightedSum(t *testing.T) {
	s := mustScorer(t)

	candidate := types.ParsedProfile{
		Skills:          []string{"python"},
		ExperienceYears: years(2),
	}
	job := types.ParsedProfile{
		Skills:          []string{"python", "tensorflow"},
		ExperienceYears: years(4),
	}

	result := s.Score("cand-1", candidate, job, 0.8)

	// skill=0.5, exp=0.5, edu_cert=0.5(学历半部分), semantic=0.8
	expected := 0.3*0.5 + 0.2*0.5 + 0.1*0.5 + 0.4*0.8
	assert.InDelta(t, expected, result.Score, 1e-9)
	assert.Equal(t, 0.5, result.Components.Skill)
	assert.Equal(t, 0.5, result.Components.Experience)
	assert.Equal(t, 0.8, result.Components.Semantic)
}

// TestEligibilityGate 技能或经验不达门槛的候选人被标记为不合格
func TestEligibilityGate(t *testing.T) {
	s := mustScorer(t, WithThresholds(0.3, 0.5))

	job := types.ParsedProfile{
		Skills:          []string{"python", "tensorflow", "nlp", "pytorch"},
		ExperienceYears: years(4),
	}

	// 技能1/4=0.25 < 0.3，不合格
	weak := types.ParsedProfile{Skills: []string{"python"}, ExperienceYears: years(4)}
	result := s.Score("weak", weak, job, 0.9)
	assert.False(t, result.Eligible)
	assert.Greater(t, result.Score, 0.0, "不合格的候选人仍然会被打分")

	// 经验1/4=0.25 < 0.5，不合格
	junior := types.ParsedProfile{Skills: job.Skills, ExperienceYears: years(1)}
	result = s.Score("junior", junior, job, 0.9)
	assert.False(t, result.Eligible)

	// 两项都达标
	strong := types.ParsedProfile{Skills: job.Skills, ExperienceYears: years(4)}
	result = s.Score("strong", strong, job, 0.9)
	assert.True(t, result.Eligible)
}

// TestScoreClampsSemantic 语义分越界时截断到[0,1]
func TestScoreClampsSemantic(t *testing.T) {
	s := mustScorer(t)

	result := s.Score("c", types.ParsedProfile{}, types.ParsedProfile{}, -0.5)
	assert.Equal(t, 0.0, result.Components.Semantic)

	result = s.Score("c", types.ParsedProfile{}, types.ParsedProfile{}, 1.5)
	assert.Equal(t, 1.0, result.Components.Semantic)
}
