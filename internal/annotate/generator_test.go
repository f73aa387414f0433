package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/report"
)

type fakeProvider struct {
	reply    string
	err      error
	requests []llm.ChatRequest
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, req llm.ChatRequest, onDelta func(string)) (*llm.ChatResponse, error) {
	return f.Chat(ctx, req)
}

const validReply = `{"replacements":[
 {"find":"world-class AI","annotation":"Standard API wrapper","type":"fluff","details":[]},
 {"find":"$100M ARR","annotation":"Only 47 employees","type":"suspicious","details":["Crunchbase shows $45M raised"]}
]}`

func sampleReport() model.StructuredReport {
	rep := model.NewStructuredReport("raw")
	rep.Claims = []model.Claim{
		{Text: "world-class AI", Verdict: "Fluff", Analysis: "Marketing language."},
		{Text: "$100M ARR", Verdict: "Suspicious"},
	}
	return rep
}

func TestGenerator_FromReport(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	g := NewGenerator(p, nil)

	anns := g.FromReport(context.Background(), sampleReport())
	require.Len(t, anns, 2)
	assert.Equal(t, "world-class AI", anns[0].Find)
	assert.Equal(t, model.SeverityFluff, anns[0].Type)
	assert.Equal(t, []string{"Crunchbase shows $45M raised"}, anns[1].Details)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.True(t, req.JSON)
	assert.Equal(t, Prompt, req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, report.ClaimsSummary(sampleReport()), req.Messages[0].Content)
}

func TestGenerator_NoClaimsSkipsModel(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	g := NewGenerator(p, nil)

	anns := g.FromReport(context.Background(), model.NewStructuredReport("# nothing"))
	assert.NotNil(t, anns)
	assert.Empty(t, anns)
	assert.Empty(t, p.requests)
}

func TestGenerator_FromRawBlankSkipsModel(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	g := NewGenerator(p, nil)

	anns := g.FromRaw(context.Background(), "  \n\t ")
	assert.NotNil(t, anns)
	assert.Empty(t, anns)
	assert.Empty(t, p.requests)
}

func TestGenerator_FromRaw(t *testing.T) {
	p := &fakeProvider{reply: "```json\n" + validReply + "\n```"}
	g := NewGenerator(p, nil)

	anns := g.FromRaw(context.Background(), "## BS Analysis:\nlots of fluff")
	assert.Len(t, anns, 2)
	assert.Equal(t, "## BS Analysis:\nlots of fluff", p.requests[0].Messages[0].Content)
}

func TestGenerator_FailuresYieldEmptyList(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"transport error", &fakeProvider{err: errors.New("connection reset")}},
		{"not json", &fakeProvider{reply: "Sure! Here are the annotations."}},
		{"invalid item", &fakeProvider{reply: `{"replacements":[{"find":"x","annotation":"y","type":"bogus"}]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.provider, nil)
			anns := g.FromRaw(context.Background(), "analysis")
			assert.NotNil(t, anns)
			assert.Empty(t, anns)
		})
	}
}

func TestDecode(t *testing.T) {
	anns, err := Decode(validReply)
	require.NoError(t, err)
	assert.Len(t, anns, 2)

	anns, err = Decode(`{"replacements":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, anns)
	assert.Empty(t, anns)

	anns, err = Decode(`{"replacements":[{"find":"fast","annotation":" Slow in tests ","type":"FALSE"}]}`)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, model.SeverityFalse, anns[0].Type)
	assert.Equal(t, "Slow in tests", anns[0].Annotation)
	assert.Nil(t, anns[0].Details)
}

func TestDecode_RejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"missing key", `{"annotations":[]}`},
		{"null list", `{"replacements":null}`},
		{"empty find", `{"replacements":[{"find":"ok","annotation":"a","type":"fluff"},{"find":" ","annotation":"a","type":"fluff"}]}`},
		{"empty annotation", `{"replacements":[{"find":"x","annotation":"","type":"fluff"}]}`},
		{"unknown type", `{"replacements":[{"find":"x","annotation":"a","type":"misleading"}]}`},
		{"details not strings", `{"replacements":[{"find":"x","annotation":"a","type":"fluff","details":[1,2]}]}`},
		{"find not string", `{"replacements":[{"find":7,"annotation":"a","type":"fluff"}]}`},
		{"list not array", `{"replacements":{"find":"x"}}`},
		{"truncated", `{"replacements":[{"find":"x"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anns, err := Decode(tt.reply)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidReply))
			assert.Nil(t, anns)
		})
	}
}
