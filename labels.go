package ssdlite

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// BackgroundLabel is the name given to class 0
const BackgroundLabel = "background"

// LoadLabels reads the labels used to train the Model from the given text file.
// It should contain one label per line.
func LoadLabels(file string) ([]string, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return labels, nil
}

// LabelsWithBackground returns labels with the background class at index 0,
// so that class numbers from the post processor index directly into it.  If
// the first label is already the background it is returned unchanged
func LabelsWithBackground(labels []string) []string {

	if len(labels) > 0 && strings.EqualFold(labels[0], BackgroundLabel) {
		return labels
	}

	out := make([]string, 0, len(labels)+1)
	out = append(out, BackgroundLabel)

	return append(out, labels...)
}
