package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	LocationsFile = "locations.json"
	QuestionsFile = "questions.json"
)

// Load 从种子目录读取地点与问题
func Load(dir string) (*Catalog, error) {
	var locations []Location
	if err := readJSON(filepath.Join(dir, LocationsFile), &locations); err != nil {
		return nil, err
	}

	var questions []Question
	if err := readJSON(filepath.Join(dir, QuestionsFile), &questions); err != nil {
		return nil, err
	}

	c, err := New(locations, questions)
	if err != nil {
		return nil, err
	}

	zap.L().Info(
		"内容目录加载完成",
		zap.String("seed_dir", dir),
		zap.Int("locations", len(c.locations)),
		zap.Int("questions", len(c.questions)),
		zap.Strings("categories", c.categories),
	)

	return c, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}
