//go:build !unix

package ldb

import "os"

func mmapFile(*os.File, int64) ([]byte, error) {
	return nil, errMmapUnsupported
}

func munmapFile([]byte) error {
	return nil
}
