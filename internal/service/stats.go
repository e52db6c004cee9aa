package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"plate-service/internal/model"
)

const shortPlateMaxLen = 5

type GarageStats struct {
	TotalPosts   int     `json:"total_posts"`
	UniquePlates int     `json:"unique_plates"`
	TotalTags    int     `json:"total_tags"`
	ShortPlates  int     `json:"short_plates"`
	MostUsedTag  *string `json:"most_used_tag"`
	NextGoal     int     `json:"next_goal"`
}

func (s *PlateService) Stats(ctx context.Context, principal model.Principal) (*GarageStats, error) {
	posts, err := s.ListGarage(ctx, principal)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(posts)
	return &stats, nil
}

// ComputeStats summarizes a garage. Tags are compared trimmed and lowercased;
// on a tie for most used tag the alphabetically first one wins.
func ComputeStats(posts []model.PlatePost) GarageStats {
	stats := GarageStats{TotalPosts: len(posts)}

	plates := make(map[string]struct{}, len(posts))
	tagCounts := make(map[string]int)
	for _, post := range posts {
		plates[post.PlateCanonical] = struct{}{}
		stats.TotalTags += len(post.Tags)

		if utf8.RuneCountInString(post.PlateCanonical) <= shortPlateMaxLen {
			stats.ShortPlates++
		}

		for _, tag := range post.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag != "" {
				tagCounts[tag]++
			}
		}
	}
	stats.UniquePlates = len(plates)

	best, bestCount := "", 0
	for tag, count := range tagCounts {
		if count > bestCount || (count == bestCount && tag < best) {
			best, bestCount = tag, count
		}
	}
	if bestCount > 0 {
		stats.MostUsedTag = &best
	}

	stats.NextGoal = NextGoal(stats.TotalPosts)
	return stats
}

// NextGoal is the next milestone above count: 5, 10, 25, 50, then every 50.
func NextGoal(count int) int {
	for _, goal := range []int{5, 10, 25, 50} {
		if count < goal {
			return goal
		}
	}
	return (count/50 + 1) * 50
}
