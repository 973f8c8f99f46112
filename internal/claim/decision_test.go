package claim

import (
	"testing"
)

func TestStatusRank_Ordering(t *testing.T) {
	if StatusCovered.Rank() != StatusNotCovered.Rank() {
		t.Errorf("Covered 与 NotCovered 应同级: %d vs %d", StatusCovered.Rank(), StatusNotCovered.Rank())
	}
	if !(StatusCovered.Rank() < StatusManualReview.Rank() && StatusManualReview.Rank() < StatusError.Rank()) {
		t.Errorf("严格度排序错误: covered=%d review=%d error=%d",
			StatusCovered.Rank(), StatusManualReview.Rank(), StatusError.Rank())
	}
}

func TestStricter(t *testing.T) {
	cases := []struct {
		a, b, want Status
	}{
		{StatusCovered, StatusManualReview, StatusManualReview},
		{StatusManualReview, StatusCovered, StatusManualReview},
		{StatusManualReview, StatusError, StatusError},
		{StatusError, StatusManualReview, StatusError},
		{StatusCovered, StatusNotCovered, StatusCovered}, // 同级保留先到者
		{StatusNotCovered, StatusCovered, StatusNotCovered},
	}
	for _, c := range cases {
		if got := Stricter(c.a, c.b); got != c.want {
			t.Errorf("Stricter(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

// TestWithStatus_Monotonic 任意状态序列应用后严格度不应下降
func TestWithStatus_Monotonic(t *testing.T) {
	sequences := [][]Status{
		{StatusManualReview, StatusCovered},
		{StatusError, StatusManualReview, StatusCovered},
		{StatusManualReview, StatusNotCovered, StatusError, StatusCovered},
	}
	for _, seq := range sequences {
		d := NewDecision(CandidateDecision{Status: StatusCovered, Confidence: 0.9})
		prevRank := d.Status.Rank()
		for _, s := range seq {
			d = d.WithStatus(s)
			if d.Status.Rank() < prevRank {
				t.Errorf("状态严格度下降: 序列 %v 中 %s 之后 rank %d < %d", seq, s, d.Status.Rank(), prevRank)
			}
			prevRank = d.Status.Rank()
		}
	}
}

func TestWithStatus_NeverLoosens(t *testing.T) {
	d := NewDecision(CandidateDecision{Status: StatusCovered})
	d = d.WithStatus(StatusManualReview)
	d = d.WithStatus(StatusCovered)
	if d.Status != StatusManualReview {
		t.Errorf("ManualReview 不应回退到 Covered, got %s", d.Status)
	}
	d = d.WithStatus(StatusError)
	d = d.WithStatus(StatusManualReview)
	if d.Status != StatusError {
		t.Errorf("Error 不应回退到 ManualReview, got %s", d.Status)
	}
}

func TestWithFinding_CriticalForcesReview(t *testing.T) {
	d := NewDecision(CandidateDecision{Status: StatusCovered, Confidence: 0.99})
	d = d.WithFinding(Finding{Severity: SeverityCritical, Description: "fabricated citation"})
	if d.Status != StatusManualReview {
		t.Errorf("Critical finding 应强制 ManualReview, got %s", d.Status)
	}
	if !d.HasCritical() {
		t.Error("HasCritical 应为 true")
	}
}

func TestWithFinding_HighDoesNotDowngrade(t *testing.T) {
	d := NewDecision(CandidateDecision{Status: StatusCovered, Confidence: 0.99})
	d = d.WithFinding(Finding{Severity: SeverityHigh, Description: "amount over limit"})
	if d.Status != StatusCovered {
		t.Errorf("High finding 不应单独降级, got %s", d.Status)
	}
}

// TestTransforms_NonDestructive transform 不应修改原值（copy-on-write）
func TestTransforms_NonDestructive(t *testing.T) {
	base := NewDecision(CandidateDecision{Status: StatusCovered})
	_ = base.WithFinding(Finding{Severity: SeverityCritical, Description: "x"})
	_ = base.WithWarning("w")
	_ = base.WithTag(TagReducedReview)
	if len(base.Findings) != 0 || len(base.Warnings) != 0 || len(base.Tags) != 0 {
		t.Errorf("原 Decision 被修改: %+v", base)
	}
	if base.Status != StatusCovered {
		t.Errorf("原状态被修改: %s", base.Status)
	}
}

func TestMerge_KeepsStricterStatusAndAllFindings(t *testing.T) {
	first := NewDecision(CandidateDecision{Status: StatusCovered}).
		WithFinding(Finding{Severity: SeverityHigh, Description: "first-pass"}).
		WithStatus(StatusManualReview)
	second := NewDecision(CandidateDecision{Status: StatusCovered}).
		WithFinding(Finding{Severity: SeverityMedium, Description: "second-pass"}).
		WithTag(TagAutoApproved)

	merged := first.Merge(second)
	if merged.Status != StatusManualReview {
		t.Errorf("合并后状态应保持更严格者, got %s", merged.Status)
	}
	if len(merged.Findings) != 2 {
		t.Errorf("两遍 Findings 都应保留, got %d", len(merged.Findings))
	}
	if merged.HasTag(TagAutoApproved) {
		t.Error("非 Covered 终态不应保留 auto-approved 标签")
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Covered":       StatusCovered,
		"NOT_COVERED":   StatusNotCovered,
		"not-covered":   StatusNotCovered,
		"Manual Review": StatusManualReview,
		"manual_review": StatusManualReview,
		"error":         StatusError,
	}
	for in, want := range cases {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Errorf("ParseStatus(%q) = %s/%v, want %s", in, got, ok, want)
		}
	}
	if _, ok := ParseStatus("maybe"); ok {
		t.Error("未知状态不应解析成功")
	}
}

func TestIsExclusion(t *testing.T) {
	cases := []struct {
		category string
		want     bool
	}{
		{"exclusion", true},
		{"Exclusion", true},
		{"limitation", true},
		{"exclusion:pre-existing", true},
		{"coverage", false},
		{"health", false},
	}
	for _, c := range cases {
		e := EvidenceItem{ID: "x", Category: c.category}
		if got := e.IsExclusion(); got != c.want {
			t.Errorf("IsExclusion(%q) = %v, want %v", c.category, got, c.want)
		}
	}
}
