package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
}

func texts(msgs []*entities.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text()
	}
	return out
}

func TestEngineStartIsStable(t *testing.T) {
	engine := NewEngine(mustGraph(t, caseDefinition()), WithClock(fixedClock))

	step1, msg1 := engine.Start()
	step2, msg2 := engine.Start()

	assert.Equal(t, step1, step2)
	assert.Equal(t, msg1.Text(), msg2.Text())
	assert.Equal(t, msg1.Sender(), msg2.Sender())
	assert.Equal(t, msg1.CreatedAt(), msg2.CreatedAt())
	assert.Equal(t, "Has the tour started?", msg1.Text())
	assert.Equal(t, valueobjects.SenderSystem, msg1.Sender())
}

func TestEngineSelectOption(t *testing.T) {
	tests := []struct {
		name      string
		step      string
		option    string
		wantNext  string
		wantTexts []string
		wantDone  bool
		wantErr   *pkgerrors.DomainError
	}{
		{
			name:      "mapped option",
			step:      "start",
			option:    "Yes",
			wantNext:  "load_showing",
			wantTexts: []string{"Yes", "Thank you. Is the load still showing on your app?"},
		},
		{
			name:      "option reaching completion step",
			step:      "load_showing",
			option:    "No",
			wantNext:  "load_showing_no",
			wantTexts: []string{"No", "Thank you for confirming. No further action is needed."},
			wantDone:  true,
		},
		{
			name:    "undeclared option",
			step:    "start",
			option:  "Maybe",
			wantErr: pkgerrors.ErrInvalidOption,
		},
		{
			name:    "option text is case sensitive",
			step:    "start",
			option:  "yes",
			wantErr: pkgerrors.ErrInvalidOption,
		},
		{
			name:    "unknown step",
			step:    "nowhere",
			option:  "Yes",
			wantErr: pkgerrors.ErrUnknownStep,
		},
	}

	engine := NewEngine(mustGraph(t, caseDefinition()), WithUserID("D12345"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := engine.SelectOption(tt.step, tt.option)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, tr.Next)
			assert.Equal(t, tt.wantTexts, texts(tr.Messages))
			assert.Equal(t, tt.wantDone, tr.Completed)
			assert.Equal(t, valueobjects.SenderEndUser, tr.Messages[0].Sender())
			assert.Equal(t, "D12345", tr.Messages[0].SenderID())
		})
	}
}

func TestEngineOptionMappingBeatsDefault(t *testing.T) {
	def := caseDefinition()
	def.Steps[0].Default = "tour_not_started"
	engine := NewEngine(mustGraph(t, def))

	tr, err := engine.SelectOption("start", "Yes")

	require.NoError(t, err)
	assert.Equal(t, "load_showing", tr.Next)
}

func TestEngineUnmappedOptionWithoutDefaultEnds(t *testing.T) {
	def := caseDefinition()
	delete(def.Steps[0].Next, "No")
	engine := NewEngine(mustGraph(t, def))

	tr, err := engine.SelectOption("start", "No")

	require.NoError(t, err)
	assert.Equal(t, End, tr.Next)
	assert.True(t, tr.Completed)
	assert.Equal(t, []string{"No"}, texts(tr.Messages))
}

func TestEngineSubmitInput(t *testing.T) {
	engine := NewEngine(mustGraph(t, caseDefinition()))

	t.Run("accepts text", func(t *testing.T) {
		tr, err := engine.SubmitInput("vrid_request", "113456789")

		require.NoError(t, err)
		assert.Equal(t, "vrid_confirmation", tr.Next)
		assert.True(t, tr.Completed)
		assert.Equal(t, "113456789", tr.Messages[0].Text())
		assert.Contains(t, tr.Messages[1].Text(), "VRID")
	})

	t.Run("keeps raw text", func(t *testing.T) {
		tr, err := engine.SubmitInput("vrid_request", "  113456789 ")

		require.NoError(t, err)
		assert.Equal(t, "  113456789 ", tr.Messages[0].Text())
	})

	for _, blank := range []string{"", "   ", "\t\n"} {
		t.Run("rejects blank "+blank, func(t *testing.T) {
			_, err := engine.SubmitInput("vrid_request", blank)
			assert.ErrorIs(t, err, pkgerrors.ErrEmptyInput)
		})
	}

	t.Run("step without input", func(t *testing.T) {
		_, err := engine.SubmitInput("start", "hello")
		assert.ErrorIs(t, err, pkgerrors.ErrInputNotExpected)
	})
}

// Walks every declared option and input of the graph.
func TestEngineExhaustivePaths(t *testing.T) {
	g := mustGraph(t, caseDefinition())
	engine := NewEngine(g)

	for _, step := range g.Steps() {
		for _, option := range step.Options {
			tr, err := engine.SelectOption(step.ID, option)
			require.NoError(t, err, "step %s option %s", step.ID, option)
			assert.True(t, g.Has(tr.Next))
			assert.NotEmpty(t, tr.Messages)
		}

		_, err := engine.SelectOption(step.ID, "not an option")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidOption)

		if step.RequiresInput {
			tr, err := engine.SubmitInput(step.ID, "value")
			require.NoError(t, err)
			assert.True(t, g.Has(tr.Next))

			_, err = engine.SubmitInput(step.ID, "")
			assert.ErrorIs(t, err, pkgerrors.ErrEmptyInput)
			_, err = engine.SubmitInput(step.ID, "   ")
			assert.ErrorIs(t, err, pkgerrors.ErrEmptyInput)
		} else {
			_, err := engine.SubmitInput(step.ID, "value")
			assert.ErrorIs(t, err, pkgerrors.ErrInputNotExpected)
		}
	}
}

func TestEngineRestartPolicy(t *testing.T) {
	def := caseDefinition()
	def.OnComplete = CompleteRestart
	engine := NewEngine(mustGraph(t, def))

	tr, err := engine.SubmitInput("vrid_request", "113456789")

	require.NoError(t, err)
	assert.False(t, tr.Completed)
	assert.Equal(t, "start", tr.Next)
	assert.Equal(t, []string{
		"113456789",
		"Thank you for providing the VRID. We will investigate the issue and update your app shortly.",
		"Has the tour started?",
	}, texts(tr.Messages))
}

func TestEngineRestartWithoutDefaultEnds(t *testing.T) {
	def := caseDefinition()
	def.OnComplete = CompleteRestart
	def.Steps[6].Default = ""
	engine := NewEngine(mustGraph(t, def))

	tr, err := engine.SubmitInput("vrid_request", "113456789")

	require.NoError(t, err)
	assert.True(t, tr.Completed)
	assert.Equal(t, End, tr.Next)
	assert.Len(t, tr.Messages, 2)
}
