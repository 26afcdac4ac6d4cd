package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

const siteCancelled = "Site told me load is cancelled but it is still on my Relay app"

func caseDefinition() Definition {
	return Definition{
		Name:       "case",
		Title:      "Load Issue",
		Start:      "start",
		OnComplete: CompleteFinalize,
		Steps: []Step{
			{
				ID:      "start",
				Prompt:  "Has the tour started?",
				Options: []string{"Yes", "No"},
				Next:    map[string]string{"Yes": "load_showing", "No": "tour_not_started"},
			},
			{ID: "tour_not_started", Prompt: "Please start your tour and check back when ready.", Default: "start"},
			{
				ID:      "load_showing",
				Prompt:  "Thank you. Is the load still showing on your app?",
				Options: []string{"Yes", "No", siteCancelled},
				Next: map[string]string{
					"Yes":         "load_showing_yes",
					"No":          "load_showing_no",
					siteCancelled: "vrid_request",
				},
			},
			{ID: "load_showing_yes", Prompt: "Please proceed with the delivery as shown in your app.", Default: "start"},
			{ID: "load_showing_no", Prompt: "Thank you for confirming. No further action is needed.", Default: "start"},
			{
				ID:            "vrid_request",
				Prompt:        "Please type VRID affected:",
				RequiresInput: true,
				Placeholder:   "Enter VRID number",
				Default:       "vrid_confirmation",
			},
			{
				ID:      "vrid_confirmation",
				Prompt:  "Thank you for providing the VRID. We will investigate the issue and update your app shortly.",
				Default: "start",
			},
		},
	}
}

func mustGraph(t *testing.T, def Definition) *Graph {
	t.Helper()
	g, err := NewGraph(def)
	require.NoError(t, err)
	return g
}

func TestNewGraphValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Definition)
		wantErr bool
		errMsg  string
	}{
		{name: "valid", mutate: func(*Definition) {}},
		{
			name:    "missing start",
			mutate:  func(d *Definition) { d.Start = "nowhere" },
			wantErr: true,
			errMsg:  `start step "nowhere" is not defined`,
		},
		{
			name:    "option targets undefined step",
			mutate:  func(d *Definition) { d.Steps[0].Next["Yes"] = "ghost" },
			wantErr: true,
			errMsg:  `targets undefined step "ghost"`,
		},
		{
			name:    "default targets undefined step",
			mutate:  func(d *Definition) { d.Steps[1].Default = "ghost" },
			wantErr: true,
			errMsg:  `default targets undefined step "ghost"`,
		},
		{
			name:    "mapping for undeclared option",
			mutate:  func(d *Definition) { d.Steps[0].Next["Maybe"] = "start" },
			wantErr: true,
			errMsg:  `maps undeclared option "Maybe"`,
		},
		{
			name:    "duplicate step",
			mutate:  func(d *Definition) { d.Steps = append(d.Steps, d.Steps[1]) },
			wantErr: true,
			errMsg:  "defined twice",
		},
		{
			name:    "reserved id",
			mutate:  func(d *Definition) { d.Steps[1].ID = End },
			wantErr: true,
			errMsg:  "reserved",
		},
		{
			name:    "unknown policy",
			mutate:  func(d *Definition) { d.OnComplete = "loop" },
			wantErr: true,
			errMsg:  "unknown on_complete",
		},
		{
			name:   "end is a valid target",
			mutate: func(d *Definition) { d.Steps[1].Default = End },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := caseDefinition()
			tt.mutate(&def)

			g, err := NewGraph(def)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidGraph)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "case", g.Name())
		})
	}
}

func TestNewGraphDefaultsToFinalize(t *testing.T) {
	def := caseDefinition()
	def.OnComplete = ""

	g := mustGraph(t, def)

	assert.Equal(t, CompleteFinalize, g.OnComplete())
}

func TestGraphEveryTargetResolves(t *testing.T) {
	g := mustGraph(t, caseDefinition())

	for _, step := range g.Steps() {
		for option, target := range step.Next {
			assert.True(t, g.Has(target), "step %s option %s", step.ID, option)
		}
		if step.Default != "" {
			assert.True(t, g.Has(step.Default), "step %s default", step.ID)
		}
	}
}

func TestGraphLookup(t *testing.T) {
	g := mustGraph(t, caseDefinition())

	step, err := g.Lookup("vrid_request")
	require.NoError(t, err)
	assert.True(t, step.RequiresInput)
	assert.Equal(t, "Enter VRID number", step.Placeholder)

	_, err = g.Lookup("missing")
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownStep)

	_, err = g.Lookup(End)
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownStep)
}

func TestGraphLookupReturnsCopies(t *testing.T) {
	g := mustGraph(t, caseDefinition())

	step, err := g.Lookup("start")
	require.NoError(t, err)
	step.Options[0] = "mutated"
	step.Next["Yes"] = "mutated"

	again, err := g.Lookup("start")
	require.NoError(t, err)
	assert.Equal(t, "Yes", again.Options[0])
	assert.Equal(t, "load_showing", again.Next["Yes"])
}
