package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity       float64 // 时间重力
	WeightLike    float64
	WeightComment float64
	WeightView    float64
	ScaleFactor   float64 // 放大系数
}

var DefaultConfig = RankConfig{
	Gravity:       1.5,
	WeightLike:    1.0,
	WeightComment: 2.0,
	WeightView:    0.01, // View 数量级太大，权重给得极小
	ScaleFactor:   100.0,
}

// CalculateScore 计算文章热度：对数平滑的加权互动值除以时间衰减
func CalculateScore(createdAt, now time.Time, likes, comments, views int) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}

	weightedSum := float64(likes)*DefaultConfig.WeightLike +
		float64(comments)*DefaultConfig.WeightComment +
		float64(views)*DefaultConfig.WeightView

	// log10(sum + 1) -> 确保 sum=0 时结果为 0
	numerator := math.Log10(weightedSum+1) * DefaultConfig.ScaleFactor
	decay := math.Pow(hours+2, DefaultConfig.Gravity)

	return numerator / decay
}
