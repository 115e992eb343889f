package constants

// Redis键格式常量
const (
	// KeyParsedTextMD5Set 已解析文本的MD5集合（去重用）
	KeyParsedTextMD5Set = "smarthire:md5:parsed_text"

	// KeyRawFileMD5Set 原始文件MD5集合（重复上传检测）
	KeyRawFileMD5Set = "smarthire:md5:raw_file"

	// KeyJobVectorPrefix 岗位描述整体向量缓存，后接jobID
	KeyJobVectorPrefix = "smarthire:job:vector"
)
