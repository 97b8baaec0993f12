package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YanwenWang1125/RealtorOS-sub000/internal/model"
	"github.com/YanwenWang1125/RealtorOS-sub000/internal/service"
)

func TestFallbackContent_IncludesLeadAndAgentIdentity(t *testing.T) {
	agent := &model.Agent{FirstName: "Alex", LastName: "Realtor"}
	lead := &model.Lead{FirstName: "Dana", LastName: "Buyer"}
	followUp := &model.FollowUp{Label: "+1d"}

	content := service.FallbackContent(agent, lead, followUp)

	assert.Contains(t, content.Subject, "Dana")
	assert.Contains(t, content.Body, "Dana")
	assert.Contains(t, content.Body, "Alex Realtor")
	assert.NotEmpty(t, content.Body)
}

func TestFallbackContent_EveryScheduledLabelHasATemplate(t *testing.T) {
	agent := &model.Agent{FirstName: "Alex"}
	lead := &model.Lead{FirstName: "Dana"}

	for _, offset := range service.DefaultSchedule {
		content := service.FallbackContent(agent, lead, &model.FollowUp{Label: offset.Label})
		assert.NotEmpty(t, content.Subject, "label %s", offset.Label)
		assert.NotEmpty(t, content.Body, "label %s", offset.Label)
		assert.NotContains(t, content.Subject, "{", "label %s leaked a placeholder", offset.Label)
		assert.NotContains(t, content.Body, "{", "label %s leaked a placeholder", offset.Label)
	}
}

func TestFallbackContent_UnknownLabelUsesDefaultTemplate(t *testing.T) {
	content := service.FallbackContent(&model.Agent{}, &model.Lead{FirstName: "Dana"}, &model.FollowUp{Label: "custom"})
	assert.Contains(t, content.Subject, "Following up")
	assert.Contains(t, content.Body, "Dana")
	// Missing agent identity degrades to a generic signature.
	assert.Contains(t, content.Body, "Your agent")
}

func TestFallbackContent_EmptyLeadNameDoesNotLeakPlaceholders(t *testing.T) {
	content := service.FallbackContent(&model.Agent{FirstName: "Alex"}, &model.Lead{}, &model.FollowUp{Label: "+7d"})
	assert.NotContains(t, content.Subject, "{first_name}")
	assert.NotContains(t, content.Body, "{first_name}")
}

func TestFallbackGenerator_SwallowsPrimaryErrors(t *testing.T) {
	primary := &stubGenerator{err: errors.New("upstream down")}
	generator := service.NewFallbackGenerator(primary)

	content, err := generator.Generate(context.Background(),
		&model.Agent{FirstName: "Alex"},
		&model.Lead{ID: "lead_1", FirstName: "Dana"},
		&model.FollowUp{ID: "fup_1", Label: "+3d"},
	)

	require.NoError(t, err)
	assert.Contains(t, content.Body, "Dana")
}

func TestFallbackGenerator_PrefersPrimaryContent(t *testing.T) {
	primary := &stubGenerator{content: service.Content{Subject: "Drafted", Body: "Drafted body"}}
	generator := service.NewFallbackGenerator(primary)

	content, err := generator.Generate(context.Background(), &model.Agent{}, &model.Lead{}, &model.FollowUp{})

	require.NoError(t, err)
	assert.Equal(t, "Drafted", content.Subject)
}

func TestFallbackGenerator_NilPrimaryServesTemplates(t *testing.T) {
	generator := service.NewFallbackGenerator(nil)

	content, err := generator.Generate(context.Background(), &model.Agent{}, &model.Lead{FirstName: "Dana"}, &model.FollowUp{Label: "+1d"})

	require.NoError(t, err)
	assert.Contains(t, content.Subject, "Dana")
}
