package upload

import "fmt"

// OrdinalName names the object uploaded for position index (0-based) of a
// batch role: pregunta_001.png, respuesta_002.jpg, ...
func OrdinalName(prefix string, index int, ext string) string {
	return fmt.Sprintf("%s_%03d%s", prefix, index+1, ext)
}
