package experiment

// Annotation is the experimenter's mark on a finished trial.
type Annotation string

const (
	AnnotationNone                 Annotation = "none"
	AnnotationViolationFirstGrasp  Annotation = "violation-first-grasp"
	AnnotationViolationSecondGrasp Annotation = "violation-second-grasp"
	AnnotationViolationBothGrasps  Annotation = "violation-both-grasps"
)

var annotationMarkers = map[Annotation]string{
	AnnotationNone:                 "NONE",
	AnnotationViolationFirstGrasp:  "Grasp #1",
	AnnotationViolationSecondGrasp: "Grasp #2",
	AnnotationViolationBothGrasps:  "Both Grasps",
}

// ParseAnnotation maps s to a known annotation. Anything unrecognized is
// AnnotationNone.
func ParseAnnotation(s string) Annotation {
	a := Annotation(s)
	if _, ok := annotationMarkers[a]; ok {
		return a
	}
	return AnnotationNone
}

// Normalize returns a itself if known, AnnotationNone otherwise.
func (a Annotation) Normalize() Annotation {
	return ParseAnnotation(string(a))
}

// IsViolation reports whether the annotation marks a precision-grasp violation.
func (a Annotation) IsViolation() bool {
	return a.Normalize() != AnnotationNone
}

// Marker is the value written to the PrecisionGraspViolation column.
func (a Annotation) Marker() string {
	return annotationMarkers[a.Normalize()]
}
