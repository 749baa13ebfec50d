package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseQueryLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    QueryLine
		wantErr bool
	}{
		{"两段页码缺省", "search|golang", QueryLine{Kind: "search", Target: "golang", Page: 1}, false},
		{"三段完整", "user_posts|u123|5", QueryLine{Kind: "user_posts", Target: "u123", Page: 5}, false},
		{"字段两侧空白", " search | go 并发 | 2 ", QueryLine{Kind: "search", Target: "go 并发", Page: 2}, false},
		{"缺少目标", "search", QueryLine{}, true},
		{"段数过多", "search|a|1|extra", QueryLine{}, true},
		{"类型为空", "|golang", QueryLine{}, true},
		{"目标为空", "search|", QueryLine{}, true},
		{"页码非数字", "search|golang|abc", QueryLine{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQueryLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQueryLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseQueryLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestReadQueriesFromFile(t *testing.T) {
	content := `# 批量查询示例
search|golang|1

user_posts|u123
无效行没有分隔符
post_comments|p99|2
`
	path := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	queries, err := ReadQueriesFromFile(path)
	if err != nil {
		t.Fatalf("ReadQueriesFromFile() error = %v", err)
	}
	if len(queries) != 3 {
		t.Fatalf("查询数 = %d, want 3 (注释/空行/无效行应跳过)", len(queries))
	}
	if queries[0].Kind != "search" || queries[0].Target != "golang" {
		t.Errorf("首条查询 = %+v", queries[0])
	}
	if queries[1].Page != 1 {
		t.Errorf("缺省页码 = %d, want 1", queries[1].Page)
	}
	if queries[2].Kind != "post_comments" || queries[2].Page != 2 {
		t.Errorf("末条查询 = %+v", queries[2])
	}
}

func TestReadQueriesFromFileAllInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(path, []byte("# 只有注释\n\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadQueriesFromFile(path); err == nil {
		t.Error("无有效查询应返回错误")
	}
}

func TestReadQueriesFromFileMissing(t *testing.T) {
	if _, err := ReadQueriesFromFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("文件不存在应返回错误")
	}
}
