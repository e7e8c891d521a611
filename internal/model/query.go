package model

// PaperSort はarXiv検索の並び順。
type PaperSort string

const (
	PaperSortSubmittedDate   PaperSort = "submittedDate"
	PaperSortRelevance       PaperSort = "relevance"
	PaperSortLastUpdatedDate PaperSort = "lastUpdatedDate"
)

// VideoOrder はYouTube検索の並び順。
type VideoOrder string

const (
	VideoOrderDate      VideoOrder = "date"
	VideoOrderRelevance VideoOrder = "relevance"
	VideoOrderViewCount VideoOrder = "viewCount"
	VideoOrderRating    VideoOrder = "rating"
)

// Valid は並び順が既知の値かを返す。
func (s PaperSort) Valid() bool {
	switch s {
	case PaperSortSubmittedDate, PaperSortRelevance, PaperSortLastUpdatedDate:
		return true
	}
	return false
}

// Valid は並び順が既知の値かを返す。
func (o VideoOrder) Valid() bool {
	switch o {
	case VideoOrderDate, VideoOrderRelevance, VideoOrderViewCount, VideoOrderRating:
		return true
	}
	return false
}

// NormalizePaperSort は未知の値をsubmittedDateに丸める。
func NormalizePaperSort(s string) PaperSort {
	if PaperSort(s).Valid() {
		return PaperSort(s)
	}
	return PaperSortSubmittedDate
}

// NormalizeVideoOrder は未知の値をdateに丸める。
func NormalizeVideoOrder(s string) VideoOrder {
	if VideoOrder(s).Valid() {
		return VideoOrder(s)
	}
	return VideoOrderDate
}

// PaperQuery は論文検索の条件。Keywordが空の場合は既定クエリを使う。
type PaperQuery struct {
	Keyword string
	SortBy  PaperSort
}

// VideoQuery は動画検索の条件。
type VideoQuery struct {
	Keyword    string
	Order      VideoOrder
	MaxResults int
	PageToken  string
}
