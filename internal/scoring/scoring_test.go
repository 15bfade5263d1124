package scoring

import (
	"context"
	"errors"
	"testing"
)

type fakeTextScorer struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeTextScorer) Score(_ context.Context, _ string) (map[string]float64, error) {
	f.calls++
	return f.scores, f.err
}

type fakeImageScorer struct {
	score float64
	err   error
	calls int
}

func (f *fakeImageScorer) Score(_ context.Context, _, _ string) (float64, error) {
	f.calls++
	return f.score, f.err
}

func TestScore_TextOnly(t *testing.T) {
	text := &fakeTextScorer{scores: map[string]float64{"TOXICITY": 0.9, "THREAT": 0.2}}
	image := &fakeImageScorer{score: 0.5}
	agg := NewAggregator(text, image, 0)

	scores := agg.Score(context.Background(), "some text", "")
	if scores["TOXICITY"] != 0.9 {
		t.Errorf("TOXICITY = %v, want 0.9", scores["TOXICITY"])
	}
	if image.calls != 0 {
		t.Error("image scorer called without an image")
	}
	if _, ok := scores[AttrHatefulMeme]; ok {
		t.Errorf("unexpected %s without an image", AttrHatefulMeme)
	}
}

func TestScore_ImageOnly(t *testing.T) {
	text := &fakeTextScorer{scores: map[string]float64{"TOXICITY": 0.9}}
	image := &fakeImageScorer{score: 0.77}
	agg := NewAggregator(text, image, 0)

	scores := agg.Score(context.Background(), "", "http://img.example/1.png")
	if text.calls != 0 {
		t.Error("text scorer called with empty text")
	}
	if scores[AttrHatefulMeme] != 0.77 {
		t.Errorf("%s = %v, want 0.77", AttrHatefulMeme, scores[AttrHatefulMeme])
	}
}

func TestScore_UnionOfBoth(t *testing.T) {
	text := &fakeTextScorer{scores: map[string]float64{"TOXICITY": 0.3}}
	image := &fakeImageScorer{score: 0.95}
	agg := NewAggregator(text, image, 0)

	scores := agg.Score(context.Background(), "caption", "http://img.example/1.png")
	if len(scores) != 2 {
		t.Fatalf("got %d attributes, want 2: %v", len(scores), scores)
	}
	if scores["TOXICITY"] != 0.3 || scores[AttrHatefulMeme] != 0.95 {
		t.Errorf("scores = %v", scores)
	}
}

func TestScore_FailsOpenOnTextError(t *testing.T) {
	text := &fakeTextScorer{err: errors.New("service unreachable")}
	image := &fakeImageScorer{score: 0.6}
	agg := NewAggregator(text, image, 0)

	scores := agg.Score(context.Background(), "caption", "http://img.example/1.png")
	if len(scores) != 1 {
		t.Fatalf("got %v, want only the image attribute", scores)
	}
	if scores[AttrHatefulMeme] != 0.6 {
		t.Errorf("%s = %v, want 0.6", AttrHatefulMeme, scores[AttrHatefulMeme])
	}
}

func TestScore_FailsOpenOnImageError(t *testing.T) {
	text := &fakeTextScorer{scores: map[string]float64{"TOXICITY": 0.4}}
	image := &fakeImageScorer{err: errors.New("classifier down")}
	agg := NewAggregator(text, image, 0)

	scores := agg.Score(context.Background(), "caption", "http://img.example/1.png")
	if _, ok := scores[AttrHatefulMeme]; ok {
		t.Errorf("%s present despite classifier error", AttrHatefulMeme)
	}
	if scores["TOXICITY"] != 0.4 {
		t.Errorf("TOXICITY = %v, want 0.4", scores["TOXICITY"])
	}
}

func TestScore_BothFail_EmptyNotNil(t *testing.T) {
	agg := NewAggregator(
		&fakeTextScorer{err: errors.New("down")},
		&fakeImageScorer{err: errors.New("down")},
		0,
	)

	scores := agg.Score(context.Background(), "text", "http://img.example/1.png")
	if scores == nil {
		t.Fatal("Score() returned nil map")
	}
	if len(scores) != 0 {
		t.Errorf("scores = %v, want empty", scores)
	}
}

func TestScore_NilScorers(t *testing.T) {
	agg := NewAggregator(nil, nil, 0)
	scores := agg.Score(context.Background(), "text", "http://img.example/1.png")
	if len(scores) != 0 {
		t.Errorf("scores = %v, want empty with nil scorers", scores)
	}
}
