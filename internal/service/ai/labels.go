package ai

import "strconv"

var cocoClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// CocoClassNames returns the 80 COCO labels yolov8 models are trained on, keyed by class id.
func CocoClassNames() map[int]string {
	names := make(map[int]string, len(cocoClassNames))
	for id, name := range cocoClassNames {
		names[id] = name
	}
	return names
}

// ClassLabel maps a class id to its label, falling back to the numeric id.
func ClassLabel(names map[int]string, classID int) string {
	if label, exists := names[classID]; exists {
		return label
	}
	return strconv.Itoa(classID)
}
