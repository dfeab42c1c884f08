// Adapters presenting the upstream session as the narrow interfaces
// internal/hierarchy and internal/group expect, kept out of those packages
// to avoid a dependency from either onto internal/upstream's concrete type.

package main

import (
	"context"

	"sporthub/internal/entity"
	"sporthub/internal/upstream"
)

// hierarchyFetcher implements hierarchy.Fetcher over the shared session.
type hierarchyFetcher struct {
	session *upstream.Session
}

func (f hierarchyFetcher) FetchHierarchy(ctx context.Context) (entity.HierarchyDoc, error) {
	result, err := f.session.Request(ctx, "query_hierarchy", nil, 0)
	if err != nil {
		return entity.HierarchyDoc{}, err
	}
	return decodeHierarchy(result), nil
}

func decodeHierarchy(result map[string]any) entity.HierarchyDoc {
	sportsRaw, _ := result["sports"].(map[string]any)
	if sportsRaw == nil {
		sportsRaw, _ = result["data"].(map[string]any)
	}
	var doc entity.HierarchyDoc
	for _, raw := range sportsRaw {
		sm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		doc.Sports = append(doc.Sports, decodeSport(sm))
	}
	return doc
}

func decodeSport(sm map[string]any) entity.Sport {
	sport := entity.Sport{ID: str(sm, "id"), Name: str(sm, "name"), Alias: str(sm, "alias")}
	regionsRaw, _ := sm["regions"].(map[string]any)
	for _, raw := range regionsRaw {
		rm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		region := entity.Region{ID: str(rm, "id"), Name: str(rm, "name")}
		compsRaw, _ := rm["competitions"].(map[string]any)
		for _, craw := range compsRaw {
			cm, ok := craw.(map[string]any)
			if !ok {
				continue
			}
			region.Competition = append(region.Competition, entity.Competition{ID: str(cm, "id"), Name: str(cm, "name")})
		}
		sport.Region = append(sport.Region, region)
	}
	return sport
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// marketPriorityFetcher implements group.PriorityFetcher over the shared session.
type marketPriorityFetcher struct {
	session *upstream.Session
}

func (f marketPriorityFetcher) FetchMarketPriority(ctx context.Context, sportID string) ([]string, error) {
	result, err := f.session.Request(ctx, "query_market_priority", map[string]any{"sport_id": sportID}, 0)
	if err != nil {
		return nil, err
	}
	rawList, _ := result["priority"].([]any)
	out := make([]string, 0, len(rawList))
	for _, v := range rawList {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
