package util

import (
	"archive/zip"
	"os"
	"sort"
	"strings"
)

// ZipBytes creates a zip archive from a map of filenames and their contents
// ZipBytes 将文件名到内容的映射打包为 zip 文件
func ZipBytes(files map[string][]byte, target string) error {
	zipFile, err := os.Create(target)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)
	defer archive.Close()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		writer, err := archive.Create(name)
		if err != nil {
			return err
		}
		if _, err := writer.Write(files[name]); err != nil {
			return err
		}
	}

	return nil
}

// ZipEntryNames opens a zip archive and returns the unique top-level
// entry names it contains, sorted. Nested paths are collapsed to their
// first segment.
// ZipEntryNames 打开 zip 文件并返回排序后的顶层条目名称，
// 嵌套路径折叠为第一段
func ZipEntryNames(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	seen := make(map[string]struct{})
	for _, f := range reader.File {
		name := strings.TrimPrefix(f.Name, "/")
		if name == "" {
			continue
		}
		if idx := strings.IndexByte(name, '/'); idx >= 0 {
			name = name[:idx]
		}
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
