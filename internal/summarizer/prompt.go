package summarizer

import (
	"fmt"

	"github.com/hitoshi/robodigest/internal/model"
)

const paperPrompt = `You are a robotics expert. Summarize the following academic paper for a dashboard.
Output must be a valid JSON object.

Paper Title: %s
Paper Summary: %s

Required JSON Format:
{
  "title_ja": "Japanese title (max 30 chars, catchy)",
  "points": ["Point 1 (Issue)", "Point 2 (Method)", "Point 3 (Result)"],
  "category": "Technical tag (e.g. SLAM, Manipulation, AGV) - English only"
}

Ensure "points" are in Japanese.
Ensure "category" is short and precise.`

const videoPrompt = `You are a robotics expert. Summarize the following YouTube video for a dashboard.
Output must be a valid JSON object.

Video Title: %s
Video Description: %s

Required JSON Format:
{
  "title_ja": "Japanese title (max 30 chars, catchy)",
  "points": ["Point 1 (Topic)", "Point 2 (Demonstration)", "Point 3 (Takeaway)"],
  "category": "Technical tag (e.g. SLAM, Manipulation, AGV) - English only"
}

Ensure "points" are in Japanese.
Ensure "category" is short and precise.
If the description is empty, infer from the title only.`

// BuildPrompt は種別に応じたプロンプトを組み立てる。未知の種別は論文として扱う。
func BuildPrompt(req model.SummaryRequest) string {
	if req.Kind == model.KindVideo {
		return fmt.Sprintf(videoPrompt, req.Title, req.Body)
	}
	return fmt.Sprintf(paperPrompt, req.Title, req.Body)
}
