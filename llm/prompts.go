package llm

import (
	"fmt"
	"strings"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const parseSystemPrompt = `Bạn là một AI chuyên phân tích giao dịch ngân hàng từ văn bản OCR.
Nhiệm vụ của bạn là trích xuất thông tin giao dịch từ văn bản và trả về JSON với format chính xác.

Lưu ý:
- Nếu không tìm thấy thông tin, để giá trị là null
- Số tiền phải là số, không có dấu phẩy hoặc dấu chấm (ví dụ: 500000 thay vì 500,000)
- Thời gian phải theo format đúng
- Tên người phải viết hoa đúng cách
- MGD (Mã giao dịch) thường là số hoặc mã định danh`

const parseUserPrompt = `Phân tích văn bản giao dịch sau và trích xuất thông tin:

%s

Trả về JSON với cấu trúc sau (KHÔNG thêm markdown, chỉ trả JSON thuần):
{
  "sender_name": "Họ tên người gửi (viết hoa đúng)",
  "receiver_name": "Họ tên người nhận (viết hoa đúng)",
  "amount_vnd": số tiền VND (số nguyên, không dấu),
  "amount_usd": số tiền USD (làm tròn 2 chữ số thập phân),
  "time": "HH:MM:SS",
  "time_in_seconds": tổng số giây từ 00:00:00,
  "date": "DD/MM/YYYY",
  "transaction_content": "Nội dung chuyển khoản",
  "sender_bank": "Ngân hàng gửi",
  "receiver_bank": "Ngân hàng nhận",
  "transaction_id": "MGD (Mã giao dịch)",
  "transaction_fee": "Phí giao dịch (VD: 'Miễn phí' hoặc số tiền)"
}

Tỷ giá: 1 USD = %s VND`

const (
	analyzeSystemPrompt = "You are a fraud detection expert analyzing credit card transactions."
	explainSystemPrompt = "You are a helpful AI assistant explaining fraud detection results in simple terms."
	chatSystemPrompt    = `You are an AI assistant specializing in credit card fraud detection.
You help users understand fraud patterns, prevention strategies, and transaction analysis.`
	reportSystemPrompt = "You are a fraud analyst generating reports for stakeholders."
)

// TransactionFields are the keys every parsed transaction carries.
var TransactionFields = []string{
	"sender_name", "receiver_name", "amount_vnd", "amount_usd",
	"time", "time_in_seconds", "date", "transaction_content",
	"sender_bank", "receiver_bank", "transaction_id", "transaction_fee",
}

func parseMessages(text string, usdToVND float64) []Message {
	return []Message{
		{Role: RoleSystem, Content: parseSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf(parseUserPrompt, text, formatRate(usdToVND))},
	}
}

func analyzeMessages(text string, data map[string]interface{}) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following transaction for potential fraud risk:\n\nTransaction Description: %s\n", text)
	if len(data) > 0 {
		fmt.Fprintf(&b, "\nTransaction Data: %s", toJSON(data))
	}
	b.WriteString(`

Please provide:
1. Risk Level (Low/Medium/High)
2. Risk Factors identified
3. Recommendations

Format your response as a structured analysis.`)

	return []Message{
		{Role: RoleSystem, Content: analyzeSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

func explainMessages(isFraud bool, probability float64, data interface{}, detail string) []Message {
	verdict := "Legitimate"
	if isFraud {
		verdict = "Fraudulent"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Explain the following fraud detection result to a non-technical user:\n\n")
	fmt.Fprintf(&b, "Prediction: %s\nFraud Probability: %.2f%%\nTransaction Data: %s\n\n", verdict, probability*100, toJSON(data))
	b.WriteString("Provide a clear, concise explanation of why this transaction was flagged or cleared, ")
	b.WriteString("highlighting the key factors that influenced the decision.")
	b.WriteString(" When model_top_factors are present, ground the explanation in them and do not invent other reasons.")
	if detail == DetailShort {
		b.WriteString(" Answer in 2-3 sentences.")
	}

	return []Message{
		{Role: RoleSystem, Content: explainSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

func chatMessages(message string, chatContext map[string]interface{}) []Message {
	content := message
	if len(chatContext) > 0 {
		content = fmt.Sprintf("Context: %s\n\nQuestion: %s", toJSON(chatContext), message)
	}

	return []Message{
		{Role: RoleSystem, Content: chatSystemPrompt},
		{Role: RoleUser, Content: content},
	}
}

func reportMessages(transactions []map[string]interface{}, timePeriod string) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a fraud analysis report for %s.\n\nNumber of Transactions: %d\n", timePeriod, len(transactions))
	if len(transactions) > 0 {
		fmt.Fprintf(&b, "\nTransactions: %s\n", utils.Truncate(toJSON(transactions), maxReportDataChars))
	}
	b.WriteString(`
Analyze the transactions and provide:
1. Executive Summary
2. Fraud Statistics
3. Common Patterns Detected
4. Risk Areas
5. Recommendations

Keep the report professional and actionable.`)

	return []Message{
		{Role: RoleSystem, Content: reportSystemPrompt},
		{Role: RoleUser, Content: b.String()},
	}
}

const maxReportDataChars = 8000

func toJSON(value interface{}) string {
	data, err := utils.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}

func formatRate(rate float64) string {
	if rate == float64(int64(rate)) {
		return fmt.Sprintf("%d", int64(rate))
	}
	return fmt.Sprintf("%g", rate)
}

// stripCodeFence removes a surrounding markdown ``` or ```json fence.
func stripCodeFence(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}

	if newline := strings.IndexByte(response, '\n'); newline >= 0 {
		header := strings.TrimSpace(response[3:newline])
		if header == "" || header == "json" {
			response = response[newline+1:]
		}
	}

	response = strings.TrimSpace(response)
	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}
