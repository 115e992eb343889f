package parser

import (
	"regexp"
	"strconv"
	"strings"

	"smart-hire-go/internal/types"
)

// 特征词表。匹配都在小写化后的全文上做子串判断，
// 词表本身保持小写
var (
	// skillVocabulary 识别的技能词
	skillVocabulary = []string{
		"python",
		"machine learning",
		"deep learning",
		"pytorch",
		"tensorflow",
		"nlp",
		"data science",
	}

	// certVocabulary 识别的证书词
	certVocabulary = []string{
		"aws certified",
		"azure",
		"gcp",
		"tensorflow certification",
	}

	// degreeVocabulary 学历词，按优先级排列，取第一个命中的
	degreeVocabulary = []types.EducationLevel{
		types.EducationBachelor,
		types.EducationMaster,
		types.EducationPhD,
		types.EducationBTech,
		types.EducationMTech,
	}
)

// experiencePattern 形如 "5 years" / "3+ years" / "1 year" 的经验声明
var experiencePattern = regexp.MustCompile(`(\d+)\+?\s+years?`)

// ParseProfile 从自由文本中抽取结构化画像。纯函数，不访问外部服务。
// 经验年限无法识别时返回nil，由打分方决定缺失值的处理
func ParseProfile(text string) types.ParsedProfile {
	lower := strings.ToLower(text)

	profile := types.ParsedProfile{}

	for _, skill := range skillVocabulary {
		if strings.Contains(lower, skill) {
			profile.Skills = append(profile.Skills, skill)
		}
	}

	if m := experiencePattern.FindStringSubmatch(lower); m != nil {
		if years, err := strconv.ParseFloat(m[1], 64); err == nil {
			profile.ExperienceYears = &years
		}
	}

	for _, degree := range degreeVocabulary {
		if strings.Contains(lower, string(degree)) {
			profile.Education = degree
			break
		}
	}

	for _, cert := range certVocabulary {
		if strings.Contains(lower, cert) {
			profile.Certifications = append(profile.Certifications, cert)
		}
	}

	return profile
}
