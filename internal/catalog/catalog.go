// Package catalog 提供地点与问题的只读查询。启动时加载一次，之后不再修改，
// 因此所有方法均可并发调用而无需加锁。
package catalog

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// 每个地点固定提供 7 个身份
const RolesPerLocation = 7

var ErrInvalidSeed = errors.New("种子数据无效")

type Location struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type Question struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Categories []string `json:"categories"`
}

type Catalog struct {
	locations  []Location
	byID       map[int]int
	questions  []Question
	categories []string
}

func New(locations []Location, questions []Question) (*Catalog, error) {
	c := &Catalog{
		locations: make([]Location, 0, len(locations)),
		byID:      make(map[int]int, len(locations)),
		questions: make([]Question, 0, len(questions)),
	}

	for _, loc := range locations {
		if err := validateLocation(loc); err != nil {
			return nil, err
		}
		if _, dup := c.byID[loc.ID]; dup {
			return nil, fmt.Errorf("%w: 地点 ID %d 重复", ErrInvalidSeed, loc.ID)
		}

		loc.Roles = slices.Clone(loc.Roles)
		c.byID[loc.ID] = len(c.locations)
		c.locations = append(c.locations, loc)
	}

	seenQuestions := make(map[string]struct{}, len(questions))
	seenCategories := make(map[string]struct{})

	for _, q := range questions {
		if q.ID == "" || strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("%w: 问题缺少 ID 或内容", ErrInvalidSeed)
		}
		if _, dup := seenQuestions[q.ID]; dup {
			return nil, fmt.Errorf("%w: 问题 ID %q 重复", ErrInvalidSeed, q.ID)
		}
		if len(q.Categories) < 2 {
			return nil, fmt.Errorf("%w: 问题 %q 至少需要两个分类", ErrInvalidSeed, q.ID)
		}
		seenQuestions[q.ID] = struct{}{}

		q.Categories = slices.Clone(q.Categories)
		for _, cat := range q.Categories {
			if _, ok := seenCategories[cat]; !ok {
				seenCategories[cat] = struct{}{}
				c.categories = append(c.categories, cat)
			}
		}

		c.questions = append(c.questions, q)
	}

	slices.Sort(c.categories)

	return c, nil
}

func validateLocation(loc Location) error {
	if strings.TrimSpace(loc.Name) == "" {
		return fmt.Errorf("%w: 地点 %d 缺少名称", ErrInvalidSeed, loc.ID)
	}
	if len(loc.Roles) != RolesPerLocation {
		return fmt.Errorf("%w: 地点 %q 需要 %d 个身份，实际 %d 个", ErrInvalidSeed, loc.Name, RolesPerLocation, len(loc.Roles))
	}

	seen := make(map[string]struct{}, len(loc.Roles))
	for _, role := range loc.Roles {
		if _, dup := seen[role]; dup || strings.TrimSpace(role) == "" {
			return fmt.Errorf("%w: 地点 %q 的身份 %q 为空或重复", ErrInvalidSeed, loc.Name, role)
		}
		seen[role] = struct{}{}
	}

	return nil
}

func (c *Catalog) LocationCount() int {
	return len(c.locations)
}

func (c *Catalog) Location(id int) (Location, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Location{}, false
	}
	return c.locations[idx], true
}

// SampleLocations 无放回地随机抽取 n 个不同地点
func (c *Catalog) SampleLocations(rng *rand.Rand, n int) ([]Location, error) {
	if n <= 0 || n > len(c.locations) {
		return nil, fmt.Errorf("无法抽取 %d 个地点：目录中只有 %d 个", n, len(c.locations))
	}

	perm := rng.Perm(len(c.locations))
	sampled := make([]Location, 0, n)
	for _, idx := range perm[:n] {
		sampled = append(sampled, c.locations[idx])
	}

	return sampled, nil
}

// Questions 返回至少带有一个指定分类的问题；categories 为空时返回全部
func (c *Catalog) Questions(categories []string) []Question {
	if len(categories) == 0 {
		return slices.Clone(c.questions)
	}

	matched := make([]Question, 0, len(c.questions))
	for _, q := range c.questions {
		for _, cat := range q.Categories {
			if slices.Contains(categories, cat) {
				matched = append(matched, q)
				break
			}
		}
	}

	return matched
}

func (c *Catalog) Categories() []string {
	return slices.Clone(c.categories)
}

func (c *Catalog) HasCategory(category string) bool {
	_, found := slices.BinarySearch(c.categories, category)
	return found
}
