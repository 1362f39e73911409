package orbitalvk

import (
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

func NewError(ret vk.Result) error {
	if ret != vk.Success {
		_, file, line, ok := runtime.Caller(1)
		if !ok {
			return fmt.Errorf("vulkan error: %s (%d)",
				vk.Error(ret).Error(), ret)
		}
		return fmt.Errorf("vulkan error: %s (%d) on %s:%d",
			vk.Error(ret).Error(), ret, file, line)
	}
	return nil
}

//Runs the finalizers and aborts the process when err is non nil. Reserved for
//the initialization-fatal class, a non functional device renders the emulated
//session unusable.
func Fatal(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		error_log.Fatal(err)
	}
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("%+v", v)
	}
}
