package deployer

import "github.com/JeseKi/fisco-autolight-client/internal/errs"

func writable(string) error {
	return errs.New(errs.UnsupportedPlatform, "windows is not supported")
}
