package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// GamificationProfile is the user's engagement stats.
type GamificationProfile struct {
	UserID               string  `json:"user_id"`
	XPTotal              int     `json:"xp_total"`
	XPThisWeek           int     `json:"xp_this_week"`
	XPToNextLevel        int     `json:"xp_to_next_level"`
	Level                int     `json:"level"`
	LevelProgress        float64 `json:"level_progress"`
	Prestige             int     `json:"prestige"`
	RankName             string  `json:"rank_name"`
	StreakDays           int     `json:"streak_days"`
	LongestStreak        int     `json:"longest_streak"`
	AchievementsUnlocked int     `json:"achievements_unlocked"`
	Badges               []Badge `json:"badges"`
}

// Badge is an earned badge.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	EarnedAt    Time   `json:"earned_at"`
}

// LeaderboardEntry is one row of the organization leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	XPTotal     int    `json:"xp_total"`
	Level       int    `json:"level"`
}

// Achievement is one achievement with the user's unlock progress.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	XPReward    int    `json:"xp_reward"`
	Rarity      string `json:"rarity"`
	Unlocked    bool   `json:"unlocked"`
	UnlockedAt  Time   `json:"unlocked_at"`
	Progress    int    `json:"progress"`
	ProgressMax int    `json:"progress_max"`
}

// StreakInfo is the user's daily activity streak. Calendar is the last 30
// days of activity in whatever shape the platform version emits.
type StreakInfo struct {
	CurrentStreak   int             `json:"current_streak"`
	LongestStreak   int             `json:"longest_streak"`
	StreakProtected bool            `json:"streak_protected"`
	FreezeAvailable bool            `json:"freeze_available"`
	Calendar        json.RawMessage `json:"calendar"`
}

// DailyBonus is the result of claiming the daily login bonus.
type DailyBonus struct {
	Claimed         bool    `json:"claimed"`
	XPEarned        int     `json:"xp_earned"`
	StreakDays      int     `json:"streak_days"`
	BonusMultiplier float64 `json:"bonus_multiplier"`
	Message         string  `json:"message"`
}

// Challenge is a time-boxed XP challenge.
type Challenge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	XPReward    int    `json:"xp_reward"`
	Progress    int    `json:"progress"`
	Goal        int    `json:"goal"`
	ExpiresAt   Time   `json:"expires_at"`
}

// GamificationService groups the engagement endpoints.
type GamificationService struct {
	c *Client
}

// Profile returns the user's gamification profile.
func (s *GamificationService) Profile(ctx context.Context) (*GamificationProfile, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/profile",
		Operation: "gamification.profile",
	})
	if err != nil {
		return nil, err
	}
	var p GamificationProfile
	if err := env.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Leaderboard returns the top users of the organization for a period. Valid
// periods are daily, weekly, monthly and all-time; limit is capped at 100
// by the platform.
func (s *GamificationService) Leaderboard(ctx context.Context, period string, limit int) ([]LeaderboardEntry, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/leaderboard",
		Operation: "gamification.leaderboard",
		Query:     q,
	})
	if err != nil {
		return nil, err
	}
	var entries []LeaderboardEntry
	if err := env.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Achievements returns achievements with unlock progress, optionally
// filtered to "unlocked" or "locked".
func (s *GamificationService) Achievements(ctx context.Context, filter string) ([]Achievement, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/achievements",
		Operation: "gamification.achievements",
		Query:     q,
	})
	if err != nil {
		return nil, err
	}
	var items []Achievement
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Badges returns the user's earned badges.
func (s *GamificationService) Badges(ctx context.Context) ([]Badge, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/badges",
		Operation: "gamification.badges",
	})
	if err != nil {
		return nil, err
	}
	var items []Badge
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Streak returns the user's current activity streak.
func (s *GamificationService) Streak(ctx context.Context) (*StreakInfo, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/streak",
		Operation: "gamification.streak",
	})
	if err != nil {
		return nil, err
	}
	var info StreakInfo
	if err := env.Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ClaimDaily claims the daily login bonus.
func (s *GamificationService) ClaimDaily(ctx context.Context) (*DailyBonus, error) {
	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/gamification/claim-daily",
		Operation: "gamification.claim_daily",
	})
	if err != nil {
		return nil, err
	}
	var b DailyBonus
	if err := env.Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Challenges returns the active weekly and monthly challenges.
func (s *GamificationService) Challenges(ctx context.Context) ([]Challenge, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/gamification/challenges",
		Operation: "gamification.challenges",
	})
	if err != nil {
		return nil, err
	}
	var items []Challenge
	if err := env.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}
