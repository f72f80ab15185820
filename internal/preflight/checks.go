package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Path: path, Detail: "does not exist"}
		}
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("stat: %v", err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Path: path, Detail: "is not a directory"}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("insufficient permissions: %v", err)}
	}
	return Result{Name: name, Path: path, Passed: true, Detail: "read/write ok"}
}

// CheckReadableFile verifies that path is a regular file the process can read.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Path: path, Detail: "does not exist"}
		}
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("stat: %v", err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Path: path, Detail: "is not a regular file"}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("not readable: %v", err)}
	}
	return Result{Name: name, Path: path, Passed: true, Detail: "readable"}
}

// CheckOutputPath verifies that the archive can be created at path: the
// parent directory must be writable and path itself must not be a directory.
func CheckOutputPath(name, path string) Result {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Result{Name: name, Path: path, Detail: "is a directory"}
	}
	dir := parentDir(path)
	res := CheckDirectoryAccess(name, dir)
	res.Path = path
	if res.Passed {
		res.Detail = "parent writable"
	} else {
		res.Detail = fmt.Sprintf("parent %s %s", dir, res.Detail)
	}
	return res
}
