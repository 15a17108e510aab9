package service

import (
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/model"
)

// categoryNode 树节点，子节点只保存ID
type categoryNode struct {
	category *model.Category
	children []uint
}

// categoryForest 按ID索引的分类树
type categoryForest struct {
	nodes map[uint]*categoryNode
	roots []uint
}

// buildForest 按输入顺序分组构建分类树，输入应已按 sort_order 排序
func buildForest(categories []model.Category) *categoryForest {
	forest := &categoryForest{nodes: make(map[uint]*categoryNode, len(categories))}

	order := make([]uint, 0, len(categories))
	for i := range categories {
		c := &categories[i]
		if _, exists := forest.nodes[c.ID]; exists {
			continue
		}
		forest.nodes[c.ID] = &categoryNode{category: c}
		order = append(order, c.ID)
	}

	// 挂载子节点，父节点不存在的分类不会出现在结果中
	childSet := make(map[uint]struct{})
	for _, id := range order {
		node := forest.nodes[id]
		parentID := node.category.ParentID
		if parentID == nil || *parentID == id {
			continue
		}
		parent, ok := forest.nodes[*parentID]
		if !ok {
			continue
		}
		parent.children = append(parent.children, id)
		childSet[id] = struct{}{}
	}

	for _, id := range order {
		if forest.nodes[id].category.ParentID != nil {
			continue
		}
		if _, isChild := childSet[id]; isChild {
			continue
		}
		forest.roots = append(forest.roots, id)
	}

	return forest
}

// render 生成嵌套响应，visited 防止异常数据造成的环
func (f *categoryForest) render(id uint, baseURL string, visited map[uint]bool) *dto.CategoryResponse {
	node := f.nodes[id]
	visited[id] = true

	resp := categoryResponse(node.category, baseURL)
	for _, childID := range node.children {
		if visited[childID] {
			continue
		}
		resp.Children = append(resp.Children, f.render(childID, baseURL, visited))
	}
	return resp
}

// renderRoots 渲染指定的根节点
func (f *categoryForest) renderRoots(roots []uint, baseURL string) []*dto.CategoryResponse {
	visited := make(map[uint]bool, len(f.nodes))
	result := make([]*dto.CategoryResponse, 0, len(roots))
	for _, id := range roots {
		if visited[id] {
			continue
		}
		result = append(result, f.render(id, baseURL, visited))
	}
	return result
}

// ancestorsAndDescendants 返回匹配节点及其所有祖先和后代
func (f *categoryForest) ancestorsAndDescendants(matched []uint) map[uint]bool {
	keep := make(map[uint]bool, len(matched))

	var markDescendants func(id uint)
	markDescendants = func(id uint) {
		node, ok := f.nodes[id]
		if !ok {
			return
		}
		for _, childID := range node.children {
			if keep[childID] {
				continue
			}
			keep[childID] = true
			markDescendants(childID)
		}
	}

	for _, id := range matched {
		node, ok := f.nodes[id]
		if !ok {
			continue
		}
		keep[id] = true
		markDescendants(id)

		// 向上查找祖先
		seen := map[uint]bool{id: true}
		for parentID := node.category.ParentID; parentID != nil && !seen[*parentID]; {
			seen[*parentID] = true
			parent, ok := f.nodes[*parentID]
			if !ok {
				break
			}
			keep[*parentID] = true
			parentID = parent.category.ParentID
		}
	}
	return keep
}

// BuildTree 将扁平分类列表构建为树，只返回真正的根节点
func BuildTree(categories []model.Category, baseURL string) []*dto.CategoryResponse {
	forest := buildForest(categories)
	return forest.renderRoots(forest.roots, baseURL)
}

// categoryResponse 生成分类响应DTO
func categoryResponse(category *model.Category, baseURL string) *dto.CategoryResponse {
	return &dto.CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Icon:        NormalizeIcon(category.Icon, baseURL),
		ParentID:    category.ParentID,
		SortOrder:   category.SortOrder,
		CreatedAt:   category.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:   category.UpdatedAt.Format(dto.TimeLayout),
	}
}
