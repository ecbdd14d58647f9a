package ldb

import "ldb/util"

func IsNotFound(err error) bool {
	return err != nil && util.CodeOf(err) == util.NotFound
}

func IsCorruption(err error) bool {
	return err != nil && util.CodeOf(err) == util.Corruption
}

func IsIOError(err error) bool {
	return err != nil && util.CodeOf(err) == util.IOError
}

func IsNotSupportedError(err error) bool {
	return err != nil && util.CodeOf(err) == util.NotSupported
}

func IsInvalidArgument(err error) bool {
	return err != nil && util.CodeOf(err) == util.InvalidArgument
}
