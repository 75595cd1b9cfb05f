package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/procureops/sourcing-cli/internal/model"
	"github.com/procureops/sourcing-cli/internal/textgen"
)

// maxGenericVariants bounds how many raw query variants a generic plan
// may issue. Generic searches carry no false-positive protection, so
// more variants only add noise.
const maxGenericVariants = 2

// resolveEntity asks the generation service to identify the product
// behind an item description. Any failure degrades to a nil entity,
// which forces the planner into generic mode.
func (p *Pipeline) resolveEntity(ctx context.Context, st *runState, item model.Item) *model.ResolvedEntity {
	system, err := p.prompts.Render("identify_system", nil)
	if err != nil {
		zap.L().Warn("plan: identify template missing, generic mode", zap.Error(err))
		return nil
	}
	user, err := p.prompts.Render("identify_user", map[string]string{"description": item.Description})
	if err != nil {
		zap.L().Warn("plan: identify template missing, generic mode", zap.Error(err))
		return nil
	}

	content, err := p.generate(ctx, st, []textgen.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, 512)
	if err != nil {
		zap.L().Warn("plan: entity resolution failed, generic mode", zap.Error(err))
		return nil
	}

	var entity model.ResolvedEntity
	if err := json.Unmarshal([]byte(extractJSON(content)), &entity); err != nil {
		zap.L().Warn("plan: unparsable entity response, generic mode", zap.Error(err))
		return nil
	}

	zap.L().Debug("plan: resolved entity",
		zap.String("model_name", entity.ModelName),
		zap.Bool("generic", entity.Generic),
		zap.String("anchor", entity.Anchor),
	)
	return &entity
}

// PlanStrategies derives the search strategies for an item. Three
// mutually exclusive modes, evaluated in order: an exact resolved model
// is searched alone; otherwise a distinguishing anchor token locks the
// commercial name, with a one-shot relaxation fallback; otherwise up to
// two raw variants of the description are issued.
func PlanStrategies(entity *model.ResolvedEntity, description string, maxLen int) []model.Strategy {
	if entity != nil && entity.ModelName != "" && !entity.Generic {
		query := SanitizeQuery(entity.ModelName, "", maxLen)
		zap.L().Info("plan: detected-model mode", zap.String("query", query))
		return []model.Strategy{{Type: model.StrategyDetectedModel, Query: query}}
	}

	if entity != nil && entity.Anchor != "" && entity.CommercialName != "" {
		query := SanitizeQuery(entity.CommercialName+" "+entity.Anchor, "", maxLen)
		fallback := SanitizeQuery(entity.CommercialName, "", maxLen)
		zap.L().Info("plan: anchored mode",
			zap.String("query", query),
			zap.String("anchor", entity.Anchor),
		)
		return []model.Strategy{{
			Type:     model.StrategyAnchored,
			Query:    query,
			Anchor:   entity.Anchor,
			Fallback: fallback,
		}}
	}

	shortTerm := ""
	if entity != nil {
		shortTerm = entity.ShortTerm
	}

	var strategies []model.Strategy
	seen := map[string]bool{}
	for _, variant := range genericVariants(entity, description) {
		query := SanitizeQuery(variant, shortTerm, maxLen)
		if query == "" || seen[query] {
			continue
		}
		seen[query] = true
		strategies = append(strategies, model.Strategy{Type: model.StrategyGeneric, Query: query})
		if len(strategies) == maxGenericVariants {
			break
		}
	}
	zap.L().Info("plan: generic mode", zap.Int("variants", len(strategies)))
	return strategies
}

// genericVariants lists raw query candidates for generic mode, most
// specific first.
func genericVariants(entity *model.ResolvedEntity, description string) []string {
	variants := []string{description}
	if entity != nil && entity.CommercialName != "" &&
		!strings.EqualFold(strings.TrimSpace(entity.CommercialName), strings.TrimSpace(description)) {
		variants = append(variants, entity.CommercialName)
	}
	return variants
}
