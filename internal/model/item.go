// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
)

// Kind はコンテンツ種別（論文/動画）を表す判別子。
type Kind string

const (
	// KindPaper はarXiv論文を表す。
	KindPaper Kind = "paper"
	// KindVideo はYouTube動画を表す。
	KindVideo Kind = "video"
)

// ParseKind は文字列をKindに変換する。未知の値の場合はエラーを返す。
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindPaper:
		return KindPaper, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unknown item kind: %q", s)
	}
}

// Enrichment はLLMによる要約結果（日本語タイトル・要点・カテゴリ）。
// title_jaとpointsは常に1組として適用する。生成後は変更しない。
type Enrichment struct {
	TitleJA  string   `json:"title_ja"`
	Points   []string `json:"points"`
	Category string   `json:"category"`
}

// Paper はarXivから取得した論文を表す。
type Paper struct {
	ID         string
	Title      string
	Summary    string // 改行を空白に畳み込んだアブストラクト
	Published  string // ISO-8601
	Link       string
	Enrichment *Enrichment
}

// Video はYouTubeから取得した動画を表す。
type Video struct {
	ID           string
	Title        string
	Description  string
	Thumbnail    string
	ChannelTitle string
	PublishedAt  string // ISO-8601
	Link         string
	Enrichment   *Enrichment
}

// paperJSON はPaperのワイヤ表現。要約フィールドはフラットに展開する。
type paperJSON struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
	Link      string   `json:"link"`
	TitleJA   string   `json:"title_ja,omitempty"`
	Points    []string `json:"points,omitempty"`
	Category  string   `json:"category,omitempty"`
}

// videoJSON はVideoのワイヤ表現。
type videoJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Thumbnail    string   `json:"thumbnail"`
	ChannelTitle string   `json:"channelTitle"`
	PublishedAt  string   `json:"publishedAt"`
	Link         string   `json:"link"`
	TitleJA      string   `json:"title_ja,omitempty"`
	Points       []string `json:"points,omitempty"`
	Category     string   `json:"category,omitempty"`
}

// MarshalJSON はPaperをフラットなJSONオブジェクトに変換する。
func (p Paper) MarshalJSON() ([]byte, error) {
	w := paperJSON{
		ID:        p.ID,
		Title:     p.Title,
		Summary:   p.Summary,
		Published: p.Published,
		Link:      p.Link,
	}
	if p.Enrichment != nil {
		w.TitleJA = p.Enrichment.TitleJA
		w.Points = p.Enrichment.Points
		w.Category = p.Enrichment.Category
	}
	return json.Marshal(w)
}

// UnmarshalJSON はフラットなJSONオブジェクトからPaperを復元する。
// title_jaが存在する場合のみEnrichmentを設定する。
func (p *Paper) UnmarshalJSON(data []byte) error {
	var w paperJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Paper{
		ID:         w.ID,
		Title:      w.Title,
		Summary:    w.Summary,
		Published:  w.Published,
		Link:       w.Link,
		Enrichment: newEnrichment(w.TitleJA, w.Points, w.Category),
	}
	return nil
}

// MarshalJSON はVideoをフラットなJSONオブジェクトに変換する。
func (v Video) MarshalJSON() ([]byte, error) {
	w := videoJSON{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		Thumbnail:    v.Thumbnail,
		ChannelTitle: v.ChannelTitle,
		PublishedAt:  v.PublishedAt,
		Link:         v.Link,
	}
	if v.Enrichment != nil {
		w.TitleJA = v.Enrichment.TitleJA
		w.Points = v.Enrichment.Points
		w.Category = v.Enrichment.Category
	}
	return json.Marshal(w)
}

// UnmarshalJSON はフラットなJSONオブジェクトからVideoを復元する。
func (v *Video) UnmarshalJSON(data []byte) error {
	var w videoJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Video{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		Thumbnail:    w.Thumbnail,
		ChannelTitle: w.ChannelTitle,
		PublishedAt:  w.PublishedAt,
		Link:         w.Link,
		Enrichment:   newEnrichment(w.TitleJA, w.Points, w.Category),
	}
	return nil
}

func newEnrichment(titleJA string, points []string, category string) *Enrichment {
	if titleJA == "" {
		return nil
	}
	return &Enrichment{TitleJA: titleJA, Points: points, Category: category}
}

// ContentItem は判別子付きの論文または動画。
// ブックマークストアに入る時点でKindが付与される。
// Kindに対応するフィールドのみが非nilとなる。
type ContentItem struct {
	Kind  Kind
	Paper *Paper
	Video *Video
}

// NewPaperItem は論文からContentItemを生成する。
func NewPaperItem(p Paper) ContentItem {
	return ContentItem{Kind: KindPaper, Paper: &p}
}

// NewVideoItem は動画からContentItemを生成する。
func NewVideoItem(v Video) ContentItem {
	return ContentItem{Kind: KindVideo, Video: &v}
}

// ID は外部識別子を返す。
func (c ContentItem) ID() string {
	switch c.Kind {
	case KindPaper:
		return c.Paper.ID
	case KindVideo:
		return c.Video.ID
	default:
		return ""
	}
}

// Title は原題を返す。
func (c ContentItem) Title() string {
	switch c.Kind {
	case KindPaper:
		return c.Paper.Title
	case KindVideo:
		return c.Video.Title
	default:
		return ""
	}
}

// Body は要約対象の本文（論文はアブストラクト、動画は説明文）を返す。
func (c ContentItem) Body() string {
	switch c.Kind {
	case KindPaper:
		return c.Paper.Summary
	case KindVideo:
		return c.Video.Description
	default:
		return ""
	}
}

// Enrichment は要約結果を返す。未要約の場合はnil。
func (c ContentItem) Enrichment() *Enrichment {
	switch c.Kind {
	case KindPaper:
		return c.Paper.Enrichment
	case KindVideo:
		return c.Video.Enrichment
	default:
		return nil
	}
}

// WithEnrichment は要約結果を差し替えたコピーを返す。Kindは保持される。
func (c ContentItem) WithEnrichment(e *Enrichment) ContentItem {
	switch c.Kind {
	case KindPaper:
		p := *c.Paper
		p.Enrichment = e
		return NewPaperItem(p)
	case KindVideo:
		v := *c.Video
		v.Enrichment = e
		return NewVideoItem(v)
	default:
		return c
	}
}

// MarshalJSON は"type"判別子付きのフラットなJSONオブジェクトに変換する。
func (c ContentItem) MarshalJSON() ([]byte, error) {
	var body []byte
	var err error
	switch c.Kind {
	case KindPaper:
		body, err = json.Marshal(c.Paper)
	case KindVideo:
		body, err = json.Marshal(c.Video)
	default:
		return nil, fmt.Errorf("unknown item kind: %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", c.Kind))
	return json.Marshal(fields)
}

// UnmarshalJSON は"type"判別子に従ってContentItemを復元する。
// 判別子が欠落または未知の場合はエラーを返す。
func (c *ContentItem) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	kind, err := ParseKind(probe.Type)
	if err != nil {
		return err
	}

	switch kind {
	case KindPaper:
		var p Paper
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*c = NewPaperItem(p)
	case KindVideo:
		var v Video
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = NewVideoItem(v)
	}
	return nil
}

// VideoPage はYouTube検索1ページ分の結果。
// NextPageTokenがnilの場合は次ページが存在しない。
type VideoPage struct {
	Videos        []Video
	NextPageToken *string
	TotalResults  int
}

// SummaryRequest は要約依頼の入力。Kindでプロンプトを切り替える。
type SummaryRequest struct {
	Title string
	Body  string
	Kind  Kind
}
