package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// checkFileExists is a simple stat check to ensure that the file
// exists at the given path.
func checkFileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// checkIsRegular checks if the file is a regular file, else it's a special
// file (that can't be copied)
func checkIsRegular(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	return stat.Mode().IsRegular()
}

// copyFile copies a file from the source to the destination.
// Note: It can only copy regular files.
func copyFile(fromPath string, toPath string) error {
	if !checkIsRegular(fromPath) {
		return fmt.Errorf("%s is not a regular file that can be copied", fromPath)
	}

	source, err := os.Open(fromPath)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(toPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, source)

	return err
}

// writeRecord marshals the record into JSON and writes it to path.
func writeRecord(path string, record *Record) error {
	f, err := json.MarshalIndent(record, "", " ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, append(f, '\n'), 0644)
}

// WriteRecordToFile writes the record as `<run id>_result.json` in
// resultDir, creating the directory if needed, and copies the chain
// configuration next to it as `<run id>_chain.yaml` when one was used.
// It returns the path of the result file.
func WriteRecordToFile(record *Record, chainConfig string, resultDir string) (string, error) {
	if !checkFileExists(resultDir) {
		err := os.MkdirAll(resultDir, 0755)
		if err != nil {
			return "", err
		}
	}

	path := filepath.Join(resultDir, fmt.Sprintf("%s_result.json", record.RunID))

	record.lock.Lock()
	err := writeRecord(path, record)
	record.lock.Unlock()

	if err != nil {
		return "", err
	}

	if strings.TrimSpace(chainConfig) == "" {
		return path, nil
	}

	err = copyFile(chainConfig, filepath.Join(resultDir, fmt.Sprintf("%s_chain.yaml", record.RunID)))

	return path, err
}
