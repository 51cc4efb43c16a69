package sequence

// PredictionResult 预测器返回的文本，不假设内部结构
type PredictionResult = string

// SequenceResponse 多帧识别响应
type SequenceResponse struct {
	Text string `json:"text"`
}

// FormField 上传帧使用的 multipart 字段名
const FormField = "files"
