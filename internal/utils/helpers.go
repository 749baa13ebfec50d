package utils

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// QueryLine 批量文件中的一行查询
// 格式: kind|target[|page],页码缺省为1
type QueryLine struct {
	Kind   string
	Target string
	Page   int
}

// ReadQueriesFromFile 从文件中读取查询列表
// 跳过空行和#注释行,格式错误的行记录警告后跳过
func ReadQueriesFromFile(filepath string) ([]QueryLine, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开查询文件失败: %w", err)
	}
	defer file.Close()

	queries := make([]QueryLine, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		query, err := ParseQueryLine(line)
		if err != nil {
			Warnf("跳过无效查询 (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		queries = append(queries, query)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取查询文件失败: %w", err)
	}

	if len(queries) == 0 {
		return nil, fmt.Errorf("查询文件中没有有效的查询")
	}

	Infof("从文件加载了 %d 个查询", len(queries))
	return queries, nil
}

// ParseQueryLine 解析单行查询 "kind|target[|page]"
func ParseQueryLine(line string) (QueryLine, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return QueryLine{}, fmt.Errorf("格式错误,应为 kind|target[|page]")
	}

	query := QueryLine{
		Kind:   strings.TrimSpace(parts[0]),
		Target: strings.TrimSpace(parts[1]),
		Page:   1,
	}

	if query.Kind == "" {
		return QueryLine{}, fmt.Errorf("请求类型不能为空")
	}
	if query.Target == "" {
		return QueryLine{}, fmt.Errorf("请求目标不能为空")
	}

	if len(parts) == 3 {
		page, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return QueryLine{}, fmt.Errorf("页码格式错误: %w", err)
		}
		query.Page = page
	}

	return query, nil
}
