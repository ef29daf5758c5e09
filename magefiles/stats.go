// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pkgStats counts lines for one package directory.
type pkgStats struct {
	Prod int `json:"prod"`
	Test int `json:"test"`
}

// Stats prints one JSON line with Go lines of code per package and in total.
func Stats() error {
	perPkg := map[string]*pkgStats{}

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		dir := filepath.ToSlash(filepath.Dir(path))
		s, ok := perPkg[dir]
		if !ok {
			s = &pkgStats{}
			perPkg[dir] = s
		}
		if strings.HasSuffix(path, "_test.go") {
			s.Test += count
		} else {
			s.Prod += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(perPkg))
	var total pkgStats
	for dir, s := range perPkg {
		dirs = append(dirs, dir)
		total.Prod += s.Prod
		total.Test += s.Test
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		fmt.Printf("%-24s %6d %6d\n", dir, perPkg[dir].Prod, perPkg[dir].Test)
	}

	line, err := json.Marshal(map[string]int{
		"go_loc_prod": total.Prod,
		"go_loc_test": total.Test,
		"go_loc":      total.Prod + total.Test,
	})
	if err != nil {
		return err
	}
	fmt.Println(string(line))
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
