package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CAMP_TEST_MODE") == "" {
			_ = os.Setenv("CAMP_TEST_MODE", "1")
		}
	})
}
